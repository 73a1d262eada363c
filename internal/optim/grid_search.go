package optim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/robosim/internal/config"
	"github.com/san-kum/robosim/internal/experiment"
	"gonum.org/v1/gonum/floats"
)

// ErrNoCandidate is returned when every grid point failed to run.
var ErrNoCandidate = errors.New("optim: no grid point produced the metric")

// Param is one axis of the grid.
type Param struct {
	Name   string
	Values []float64
}

// ParseParam reads "name=lo:hi:n" (n evenly spaced values) or
// "name=v1,v2,...".
func ParseParam(s string) (Param, error) {
	name, axis, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return Param{}, fmt.Errorf("param %q: want name=lo:hi:n or name=v1,v2", s)
	}

	if parts := strings.Split(axis, ":"); len(parts) == 3 {
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err := errors.Join(err1, err2, err3); err != nil {
			return Param{}, fmt.Errorf("param %q: %w", s, err)
		}
		if n < 2 {
			return Param{}, fmt.Errorf("param %q: need at least 2 points", s)
		}
		return Param{Name: name, Values: floats.Span(make([]float64, n), lo, hi)}, nil
	}

	var vals []float64
	for _, f := range strings.Split(axis, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Param{}, fmt.Errorf("param %q: %w", s, err)
		}
		vals = append(vals, v)
	}
	return Param{Name: name, Values: vals}, nil
}

// Apply sets a named tunable on cfg.
func Apply(cfg *config.Config, name string, v float64) error {
	switch name {
	case "kp":
		cfg.PID.Kp = v
	case "ki":
		cfg.PID.Ki = v
	case "kd":
		cfg.PID.Kd = v
	case "q_x", "q_v", "q_theta", "q_omega":
		idx := map[string]int{"q_x": 0, "q_v": 1, "q_theta": 2, "q_omega": 3}[name]
		if len(cfg.LQR.Q) != 4 {
			return fmt.Errorf("tune %s: lqr.q has %d entries", name, len(cfg.LQR.Q))
		}
		cfg.LQR.Q[idx] = v
	case "r":
		cfg.LQR.R = []float64{v}
	case "particles":
		cfg.ParticleFilter.Particles = int(math.Round(v))
	case "resample_ratio":
		cfg.ParticleFilter.ResampleRatio = v
	default:
		return fmt.Errorf("unknown tunable: %s", name)
	}
	return nil
}

// Outcome is the best grid point found.
type Outcome struct {
	Params    map[string]float64
	Value     float64
	Evaluated int
	Failed    int
}

type GridSearch struct {
	params   []Param
	maximize bool
	logger   *slog.Logger
}

type Option func(*GridSearch)

// Maximize prefers larger metric values.
func Maximize() Option {
	return func(g *GridSearch) { g.maximize = true }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *GridSearch) { g.logger = l }
}

func NewGridSearch(params []Param, opts ...Option) *GridSearch {
	g := &GridSearch{
		params: params,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Search runs one experiment per grid point on a copy of base and returns
// the point with the best value of metric. Points whose configuration is
// invalid or whose run fails are counted and skipped.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metric string) (*Outcome, error) {
	for _, p := range g.params {
		if err := Apply(base.Clone(), p.Name, 0); err != nil {
			return nil, err
		}
	}

	out := &Outcome{Value: math.Inf(1)}
	if g.maximize {
		out.Value = math.Inf(-1)
	}
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), base, metric, out); err != nil {
		return nil, err
	}
	if out.Params == nil {
		return out, ErrNoCandidate
	}
	return out, nil
}

func (g *GridSearch) better(v, best float64) bool {
	if g.maximize {
		return v > best
	}
	return v < best
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	metric string,
	out *Outcome,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.params) {
		val, err := g.evaluate(ctx, current, base, metric)
		out.Evaluated++
		if err != nil {
			out.Failed++
			g.logger.Debug("grid point failed", "params", current, "err", err)
			return nil
		}
		g.logger.Debug("grid point", "params", current, metric, val)
		if g.better(val, out.Value) {
			out.Value = val
			out.Params = make(map[string]float64, len(current))
			for k, v := range current {
				out.Params[k] = v
			}
		}
		return nil
	}

	p := g.params[depth]
	for _, val := range p.Values {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[p.Name] = val

		if err := g.searchRecursive(ctx, depth+1, next, base, metric, out); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) evaluate(ctx context.Context, params map[string]float64, base *config.Config, metric string) (float64, error) {
	cfg := base.Clone()
	for name, v := range params {
		if err := Apply(cfg, name, v); err != nil {
			return 0, err
		}
	}

	exp, err := experiment.New(cfg, experiment.WithLogger(g.logger))
	if err != nil {
		return 0, err
	}
	result, err := exp.Run(ctx)
	if err != nil {
		return 0, err
	}
	val, ok := result.Metrics[metric]
	if !ok {
		return 0, fmt.Errorf("metric %q not recorded", metric)
	}
	if math.IsNaN(val) {
		return 0, fmt.Errorf("metric %q is NaN", metric)
	}
	return val, nil
}
