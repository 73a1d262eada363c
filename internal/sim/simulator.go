package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/robosim/internal/dynamo"
)

// DefaultSpeed is the number of sub-steps per Update.
const DefaultSpeed = 2

// MetricFactory builds fresh metrics for an agent of the given kind.
type MetricFactory func(k Kind) []dynamo.Metric

// Simulator drives a collection of independent agents with a shared clock.
type Simulator struct {
	agents    []Agent
	speed     int
	time      float64
	logger    *slog.Logger
	metrics   MetricFactory
	observers []dynamo.Observer
}

type Option func(*Simulator)

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithSpeed sets how many dt sub-steps every Update performs.
func WithSpeed(n int) Option {
	return func(s *Simulator) { s.speed = n }
}

func WithMetrics(f MetricFactory) Option {
	return func(s *Simulator) { s.metrics = f }
}

func WithObserver(o dynamo.Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

func New(agents []Agent, opts ...Option) (*Simulator, error) {
	s := &Simulator{
		agents: append([]Agent(nil), agents...),
		speed:  DefaultSpeed,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.speed < 1 {
		return nil, dynamo.NewConfigError("speed", s.speed, "must be at least 1")
	}
	return s, nil
}

func (s *Simulator) Add(a Agent) {
	s.agents = append(s.agents, a)
}

func (s *Simulator) Agents() []Agent {
	return append([]Agent(nil), s.agents...)
}

func (s *Simulator) Time() float64 {
	return s.time
}

// Update advances every agent by speed sub-steps of dt. Warnings are
// logged; the first hard error stops the update.
func (s *Simulator) Update(dt float64) error {
	for i, a := range s.agents {
		for k := 0; k < s.speed; k++ {
			sample, err := a.Step(dt)
			if err != nil {
				return fmt.Errorf("agent %d: %w", i, err)
			}
			s.logSample(i, sample)
		}
	}
	s.time += dt * float64(s.speed)
	return nil
}

// Reset returns every agent to its initial state and zeroes the clock.
func (s *Simulator) Reset() {
	for _, a := range s.agents {
		a.Reset()
	}
	s.time = 0
}

// SyncTo copies the state of agent idx into every other agent of the same
// kind and returns how many agents were updated.
func (s *Simulator) SyncTo(idx int) (int, error) {
	if idx < 0 || idx >= len(s.agents) {
		return 0, fmt.Errorf("sync: agent %d of %d: %w", idx, len(s.agents), dynamo.ErrDimensionMismatch)
	}
	snap := s.agents[idx].Snapshot()

	synced := 0
	for i, a := range s.agents {
		if i == idx || a.Kind() != snap.Kind {
			continue
		}
		if err := a.Restore(snap); err != nil {
			return synced, err
		}
		synced++
	}
	return synced, nil
}

// Tune sets a controller parameter of agent idx while the simulator runs.
func (s *Simulator) Tune(idx int, name string, value float64) error {
	if idx < 0 || idx >= len(s.agents) {
		return fmt.Errorf("tune: agent %d of %d: %w", idx, len(s.agents), dynamo.ErrDimensionMismatch)
	}
	p := s.agents[idx].Pendulum()
	if p == nil {
		return fmt.Errorf("tune agent %d: %w", idx, dynamo.ErrIncompatible)
	}
	c, ok := p.Controller().(dynamo.Configurable)
	if !ok {
		return fmt.Errorf("tune agent %d: controller has no parameters: %w", idx, dynamo.ErrIncompatible)
	}
	return c.SetParam(name, value)
}

// Run resets the agents and records cfg.Steps() ticks of dt for each.
// Results are in agent order. On cancellation the partial results are
// returned with an error wrapping dynamo.ErrContextCanceled.
func (s *Simulator) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s.Reset()

	steps := cfg.Steps()
	results := make([]*Result, len(s.agents))
	metrics := make([][]dynamo.Metric, len(s.agents))
	for i, a := range s.agents {
		results[i] = newResult(a, steps)
		if s.metrics != nil {
			metrics[i] = s.metrics(a.Kind())
		}
		for _, m := range metrics[i] {
			m.Reset()
		}
	}

	for step := 0; step < steps; step++ {
		select {
		case <-ctx.Done():
			s.finish(results, metrics)
			return results, fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err())
		default:
		}

		for i, a := range s.agents {
			sample, err := a.Step(cfg.Dt)
			if err != nil {
				s.finish(results, metrics)
				return results, fmt.Errorf("agent %d step %d: %w", i, step, err)
			}
			s.logSample(i, sample)
			s.observe(metrics[i], sample)
			results[i].record(sample)
		}
		s.time += cfg.Dt
	}

	s.finish(results, metrics)
	for i, r := range results {
		if n := r.Events[dynamo.EventNonConvergent.String()]; n > 0 {
			s.logger.Warn("gain built from unconverged riccati iterate", "agent", i, "ticks", n)
		}
	}
	return results, nil
}

func (s *Simulator) observe(ms []dynamo.Metric, sample Sample) {
	for _, m := range ms {
		m.Observe(sample.State, sample.Control, sample.Time)
		if em, ok := m.(dynamo.EstimateMetric); ok && sample.Estimate != nil {
			em.ObserveEstimate(sample.State, sample.Estimate, sample.Time)
		}
		if ev, ok := m.(dynamo.EventMetric); ok {
			for _, e := range sample.Events {
				ev.ObserveEvent(e, sample.Time)
			}
		}
	}
	for _, o := range s.observers {
		o.OnStep(sample.State, sample.Control, sample.Time)
	}
}

func (s *Simulator) finish(results []*Result, metrics [][]dynamo.Metric) {
	for i, ms := range metrics {
		for _, m := range ms {
			results[i].Metrics[m.Name()] = m.Value()
		}
	}
}

// logSample reports per-tick events. Non-convergence is summarised once per
// run instead.
func (s *Simulator) logSample(agent int, sample Sample) {
	for _, e := range sample.Events {
		switch e {
		case dynamo.EventFallback:
			s.logger.Warn("controller unavailable, holding previous command",
				"agent", agent, "t", sample.Time, "err", sample.Warning)
		case dynamo.EventDegenerate:
			s.logger.Warn("particle weights degenerate, population re-initialised",
				"agent", agent, "t", sample.Time)
		case dynamo.EventResample:
			s.logger.Debug("particles resampled", "agent", agent, "t", sample.Time)
		}
	}
}

func newResult(a Agent, steps int) *Result {
	r := &Result{
		Kind:     a.Kind(),
		States:   make([]dynamo.State, 0, steps+1),
		Controls: make([]dynamo.Control, 0, steps),
		Times:    make([]float64, 0, steps+1),
		Metrics:  make(map[string]float64),
		Events:   make(map[string]int),
	}
	r.States = append(r.States, a.State())
	r.Times = append(r.Times, 0)
	if a.Kind() == KindVehicle {
		r.Estimates = append(make([]dynamo.State, 0, steps+1), a.Vehicle().Estimate())
		r.DeadReckoning = append(make([]dynamo.State, 0, steps+1), a.State())
		r.CovTrace = append(make([]float64, 0, steps+1), 0)
	}
	return r
}

func (r *Result) record(s Sample) {
	r.States = append(r.States, s.State)
	r.Controls = append(r.Controls, s.Control)
	r.Times = append(r.Times, s.Time)
	if r.Kind == KindVehicle {
		r.Estimates = append(r.Estimates, s.Estimate)
		r.DeadReckoning = append(r.DeadReckoning, s.DeadReckoning)
		r.CovTrace = append(r.CovTrace, s.CovTrace)
	}
	for _, e := range s.Events {
		r.Events[e.String()]++
	}
	r.StepsTaken++
}
