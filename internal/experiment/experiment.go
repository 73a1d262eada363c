package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/san-kum/robosim/internal/config"
	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/localization"
	"github.com/san-kum/robosim/internal/sim"
)

// seedStream separates the PCG stream from the user seed.
const seedStream = 0x9e3779b97f4a7c15

type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	logger    *slog.Logger
	observers []dynamo.Observer
	simulator *sim.Simulator
}

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

func WithObserver(o dynamo.Observer) Option {
	return func(e *Experiment) { e.observers = append(e.observers, o) }
}

// New validates cfg and builds a single-agent simulator seeded with
// cfg.Seed.
func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	if cfg == nil {
		return nil, dynamo.NewConfigError("config", nil, "missing")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Experiment{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	s, err := e.build(cfg.Seed)
	if err != nil {
		return nil, err
	}
	e.simulator = s
	return e, nil
}

// NewRand returns the generator used for a given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^seedStream))
}

// Agent builds one agent of the configured scenario from seed.
func (e *Experiment) Agent(seed uint64) (sim.Agent, error) {
	kind, err := sim.ParseKind(e.cfg.Scenario)
	if err != nil {
		return sim.Agent{}, err
	}
	rng := NewRand(seed)

	switch kind {
	case sim.KindVehicle:
		lc, err := e.cfg.FilterConfig()
		if err != nil {
			return sim.Agent{}, err
		}
		f, err := localization.New(lc, rng)
		if err != nil {
			return sim.Agent{}, err
		}
		v, err := sim.NewVehicle(f, e.cfg.Landmarks(), e.cfg.Input())
		if err != nil {
			return sim.Agent{}, err
		}
		return sim.VehicleAgent(v), nil
	}

	plant := e.cfg.CartPole()
	ctrl, err := e.registry.GetController(e.cfg.Controller, e.cfg, plant)
	if err != nil {
		return sim.Agent{}, err
	}

	var opts []sim.PendulumOption
	if e.cfg.Plant == config.PlantNonlinear {
		integ, err := e.registry.GetIntegrator(e.cfg.Integrator)
		if err != nil {
			return sim.Agent{}, err
		}
		opts = append(opts, sim.WithNonlinearPlant(integ))
	}
	if !e.cfg.Pendulum.RandomStart {
		opts = append(opts, sim.WithInitialState(e.cfg.Pendulum.InitState))
	}

	p, err := sim.NewPendulum(plant, ctrl, rng, opts...)
	if err != nil {
		return sim.Agent{}, err
	}
	return sim.PendulumAgent(p), nil
}

func (e *Experiment) build(seed uint64) (*sim.Simulator, error) {
	agent, err := e.Agent(seed)
	if err != nil {
		return nil, err
	}
	opts := []sim.Option{
		sim.WithLogger(e.logger),
		sim.WithMetrics(e.registry.DefaultMetrics(e.cfg)),
	}
	for _, o := range e.observers {
		opts = append(opts, sim.WithObserver(o))
	}
	return sim.New([]sim.Agent{agent}, opts...)
}

func (e *Experiment) SimConfig() sim.Config {
	return sim.Config{Dt: e.cfg.Dt, Duration: e.cfg.Duration}
}

func (e *Experiment) Config() *config.Config {
	return e.cfg
}

// Run executes the configured run. On cancellation the partial result is
// returned together with the error.
func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	results, err := e.simulator.Run(ctx, e.SimConfig())
	if len(results) == 0 {
		return nil, err
	}
	return results[0], err
}

// RunEnsemble runs n independent copies seeded cfg.Seed, cfg.Seed+1, ...
func (e *Experiment) RunEnsemble(ctx context.Context, n int) ([]*sim.Result, error) {
	if n < 1 {
		return nil, dynamo.NewConfigError("runs", n, "must be at least 1")
	}
	ens := sim.NewEnsemble(e.build, n, e.cfg.Seed)
	results, err := ens.Run(ctx, e.SimConfig())
	if err != nil {
		return nil, fmt.Errorf("ensemble: %w", err)
	}
	out := make([]*sim.Result, len(results))
	for i, r := range results {
		out[i] = r[0]
	}
	return out, nil
}

// Simulator returns the underlying simulator for adding agents or
// observers.
func (e *Experiment) Simulator() *sim.Simulator {
	return e.simulator
}
