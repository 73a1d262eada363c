package report

import (
	"fmt"
	"image/color"

	"github.com/san-kum/robosim/internal/physics"
	"github.com/san-kum/robosim/internal/storage"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	truthColor = color.RGBA{R: 30, G: 30, B: 200, A: 255}
	estColor   = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	drColor    = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	markColor  = color.RGBA{G: 160, A: 255}
)

const (
	pngWidth  = 8 * vg.Inch
	pngHeight = 6 * vg.Inch
)

// SavePNG draws t to path. Localization runs become an x/y trajectory
// plot with the given landmarks, pendulum runs an angle and position
// time series.
func SavePNG(t *storage.Table, title, path string, landmarks []physics.Landmark) error {
	var (
		p   *plot.Plot
		err error
	)
	if _, ok := t.Column("est_x"); ok {
		p, err = TrajectoryPlot(t, landmarks)
	} else {
		p, err = PendulumPlot(t)
	}
	if err != nil {
		return err
	}
	if title != "" {
		p.Title.Text = title
	}
	return p.Save(pngWidth, pngHeight, path)
}

// TrajectoryPlot overlays the true, estimated and dead-reckoned paths.
func TrajectoryPlot(t *storage.Table, landmarks []physics.Landmark) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "particle filter localization"
	p.X.Label.Text = "x [m]"
	p.Y.Label.Text = "y [m]"
	p.Legend.Top = true

	for _, s := range []struct {
		label  string
		xs, ys string
		c      color.Color
		dashed bool
	}{
		{"truth", "x", "y", truthColor, false},
		{"dead reckoning", "dr_x", "dr_y", drColor, true},
		{"estimate", "est_x", "est_y", estColor, false},
	} {
		pts, err := xyColumns(t, s.xs, s.ys)
		if err != nil {
			return nil, err
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		l.Color = s.c
		l.Width = vg.Points(1.5)
		if s.dashed {
			l.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		}
		p.Add(l)
		p.Legend.Add(s.label, l)
	}

	if len(landmarks) > 0 {
		pts := make(plotter.XYs, len(landmarks))
		for i, lm := range landmarks {
			pts[i].X = lm.X
			pts[i].Y = lm.Y
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = markColor
		sc.Shape = draw.PyramidGlyph{}
		sc.GlyphStyle.Radius = vg.Points(5)
		p.Add(sc)
		p.Legend.Add("landmarks", sc)
	}

	p.Add(plotter.NewGrid())
	return p, nil
}

// PendulumPlot draws the rod angle and cart position against time.
func PendulumPlot(t *storage.Table) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "inverted pendulum"
	p.X.Label.Text = "time [s]"
	p.Legend.Top = true

	for _, s := range []struct {
		label, col string
		c          color.Color
	}{
		{"theta [rad]", "theta", estColor},
		{"x [m]", "x", truthColor},
	} {
		ys, ok := t.Column(s.col)
		if !ok {
			return nil, fmt.Errorf("no column %q", s.col)
		}
		pts := make(plotter.XYs, len(ys))
		for i := range ys {
			pts[i].X = t.Times[i]
			pts[i].Y = ys[i]
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		l.Color = s.c
		l.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add(s.label, l)
	}

	p.Add(plotter.NewGrid())
	return p, nil
}

func xyColumns(t *storage.Table, xc, yc string) (plotter.XYs, error) {
	xs, ok := t.Column(xc)
	if !ok {
		return nil, fmt.Errorf("no column %q", xc)
	}
	ys, ok := t.Column(yc)
	if !ok {
		return nil, fmt.Errorf("no column %q", yc)
	}
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	return pts, nil
}
