package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/robosim/internal/config"
	"github.com/san-kum/robosim/internal/control"
	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/integrators"
	"github.com/san-kum/robosim/internal/metrics"
	"github.com/san-kum/robosim/internal/physics"
	"github.com/san-kum/robosim/internal/sim"
)

// angleIndex is the rod angle in the cart-pole state.
const angleIndex = 2

// StabilityThreshold is the largest rod angle counted as balanced.
const StabilityThreshold = 0.25

// ControllerFactory builds a pendulum controller from a validated config.
type ControllerFactory func(cfg *config.Config, plant *physics.CartPole) (dynamo.Controller, error)

type Registry struct {
	integrators map[string]func() dynamo.Integrator
	controllers map[string]ControllerFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
		controllers: make(map[string]ControllerFactory),
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }

	r.controllers["none"] = func(*config.Config, *physics.CartPole) (dynamo.Controller, error) {
		return control.NewNone(physics.CartPoleInputs), nil
	}
	r.controllers["pid"] = func(cfg *config.Config, _ *physics.CartPole) (dynamo.Controller, error) {
		p := cfg.PID
		return control.NewPID(p.Kp, p.Ki, p.Kd, p.Target, angleIndex)
	}
	r.controllers["lqr"] = func(cfg *config.Config, plant *physics.CartPole) (dynamo.Controller, error) {
		params, err := cfg.LQRParams()
		if err != nil {
			return nil, err
		}
		return control.NewLQR(plant, params, control.WithWarmStart(cfg.LQR.WarmStart))
	}

	return r
}

// RegisterController adds or replaces a named controller.
func (r *Registry) RegisterController(name string, f ControllerFactory) {
	r.controllers[name] = f
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetController(name string, cfg *config.Config, plant *physics.CartPole) (dynamo.Controller, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(cfg, plant)
}

func (r *Registry) ListControllers() []string {
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns the metrics recorded for each kind of agent.
// Energy drift is only meaningful for an uncontrolled nonlinear plant.
func (r *Registry) DefaultMetrics(cfg *config.Config) sim.MetricFactory {
	return func(k sim.Kind) []dynamo.Metric {
		switch k {
		case sim.KindVehicle:
			return []dynamo.Metric{
				metrics.NewPositionError(),
				metrics.NewResampleCount(),
				metrics.NewEventCount("degeneracies", dynamo.EventDegenerate),
				metrics.NewControlEffort(),
			}
		default:
			ms := []dynamo.Metric{
				metrics.NewStability(StabilityThreshold, angleIndex),
				metrics.NewControlEffort(),
				metrics.NewFallbackCount(),
			}
			if cfg.Controller == "none" && cfg.Plant == config.PlantNonlinear {
				ms = append(ms, metrics.NewEnergyDrift(cfg.CartPole()))
			}
			return ms
		}
	}
}
