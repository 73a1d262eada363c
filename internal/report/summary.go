package report

import (
	"fmt"
	"math/cmplx"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/san-kum/robosim/internal/storage"
)

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	Good = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ff88"))

	Warn = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ffaa00"))

	header = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ffffff"))
)

func line(label, value string) string {
	return MetricLabel.Render(fmt.Sprintf("%-16s", label)) + MetricValue.Render(value)
}

// Summary renders the outcome of a saved run.
func Summary(meta storage.RunMetadata, elapsed time.Duration) string {
	lines := []string{
		Title.Render(meta.Scenario + " run " + meta.ID),
		"",
		line("steps", fmt.Sprintf("%d", meta.Steps)),
		line("dt", fmt.Sprintf("%g s", meta.Dt)),
		line("seed", fmt.Sprintf("%d", meta.Seed)),
	}
	if meta.Controller != "" {
		lines = append(lines, line("controller", meta.Controller+" / "+meta.Plant))
	}
	if elapsed > 0 {
		lines = append(lines, line("elapsed", elapsed.Round(time.Microsecond).String()))
	}

	if len(meta.Metrics) > 0 {
		lines = append(lines, "", header.Render("metrics"))
		for _, name := range sortedKeys(meta.Metrics) {
			lines = append(lines, line(name, fmt.Sprintf("%.6g", meta.Metrics[name])))
		}
	}
	if len(meta.Events) > 0 {
		lines = append(lines, "", header.Render("events"))
		names := make([]string, 0, len(meta.Events))
		for name := range meta.Events {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			lines = append(lines, MetricLabel.Render(fmt.Sprintf("%-16s", name))+Warn.Render(fmt.Sprintf("%d", meta.Events[name])))
		}
	}
	return Panel.Render(strings.Join(lines, "\n"))
}

// RunList renders stored runs as a table.
func RunList(runs []storage.RunMetadata) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#444466"))).
		Headers("ID", "SCENARIO", "TIME", "DURATION", "DT", "CTRL", "STEPS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	for _, r := range runs {
		ctrl := r.Controller
		if ctrl == "" {
			ctrl = "-"
		}
		t.Row(
			r.ID,
			r.Scenario,
			r.Timestamp.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.2fs", r.Duration),
			fmt.Sprintf("%gs", r.Dt),
			ctrl,
			fmt.Sprintf("%d", r.Steps),
		)
	}
	return t.String()
}

const stabilityTol = 1e-6

// GainReport describes an LQR design for display.
type GainReport struct {
	K           []float64
	Iterations  int
	Residual    float64
	Converged   bool
	Eigenvalues []complex128
}

// Stable reports whether every eigenvalue lies in the closed unit disc.
// An unweighted state leaves an eigenvalue on the circle.
func (g GainReport) Stable() bool {
	for _, ev := range g.Eigenvalues {
		if cmplx.Abs(ev) > 1+stabilityTol {
			return false
		}
	}
	return true
}

// Gain renders an LQR design with its closed-loop eigenvalues.
func Gain(g GainReport) string {
	ks := make([]string, len(g.K))
	for i, k := range g.K {
		ks[i] = fmt.Sprintf("%.4f", k)
	}

	status := Good.Render("converged")
	if !g.Converged {
		status = Warn.Render("not converged")
	}
	stability := Good.Render("stable")
	if !g.Stable() {
		stability = Warn.Render("unstable")
	}

	lines := []string{
		Title.Render("LQR gain"),
		"",
		line("K", "["+strings.Join(ks, ", ")+"]"),
		line("iterations", fmt.Sprintf("%d", g.Iterations)) + "  " + status,
		line("residual", fmt.Sprintf("%.3g", g.Residual)),
		"",
		header.Render("closed-loop eigenvalues") + "  " + stability,
	}
	for _, ev := range g.Eigenvalues {
		lines = append(lines, line(fmt.Sprintf("|λ| = %.4f", cmplx.Abs(ev)), fmt.Sprintf("%.4f%+.4fi", real(ev), imag(ev))))
	}
	return Panel.Render(strings.Join(lines, "\n"))
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
