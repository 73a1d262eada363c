package report

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/robosim/internal/storage"
)

const (
	ChartHeight = 10
	ChartWidth  = 80
)

var captions = map[string]string{
	"x":         "cart position [m]",
	"v":         "cart velocity [m/s]",
	"theta":     "rod angle [rad]",
	"omega":     "rod angular velocity [rad/s]",
	"force":     "force on cart [N]",
	"y":         "vehicle y [m]",
	"yaw":       "vehicle heading [rad]",
	"cov_trace": "estimate covariance trace",
	"est_x":     "estimated x [m]",
	"est_y":     "estimated y [m]",
}

// DefaultColumns picks the columns charted when none are requested.
func DefaultColumns(t *storage.Table) []string {
	if _, ok := t.Column("cov_trace"); ok {
		return []string{"x", "y", "cov_trace"}
	}
	return []string{"theta", "x", "force"}
}

// Chart renders one column of t as an ASCII line chart.
func Chart(t *storage.Table, column string) (string, error) {
	data, ok := t.Column(column)
	if !ok {
		return "", fmt.Errorf("no column %q (have %s)", column, strings.Join(t.Columns, ", "))
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no data to plot")
	}

	caption := column
	if c, ok := captions[column]; ok {
		caption = c
	}
	return asciigraph.Plot(data,
		asciigraph.Height(ChartHeight),
		asciigraph.Width(ChartWidth),
		asciigraph.Caption(caption),
	), nil
}

// Charts renders several columns separated by blank lines.
func Charts(t *storage.Table, columns ...string) (string, error) {
	if len(columns) == 0 {
		columns = DefaultColumns(t)
	}
	var b strings.Builder
	for i, c := range columns {
		g, err := Chart(t, c)
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(g)
	}
	return b.String(), nil
}
