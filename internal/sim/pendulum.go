package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/integrators"
	"github.com/san-kum/robosim/internal/physics"
	"gonum.org/v1/gonum/stat/distuv"
)

// MaxInitialAngle bounds the random starting angle of a reset pendulum.
const MaxInitialAngle = 0.4

// Pendulum is an inverted pendulum on a cart under feedback control.
type Pendulum struct {
	plant *physics.CartPole
	truth dynamo.System
	integ dynamo.Integrator
	ctrl  dynamo.Controller
	rng   *rand.Rand

	x0 dynamo.State
	x  dynamo.State
	u  dynamo.Control
	t  float64

	step int
}

type PendulumOption func(*Pendulum)

// WithNonlinearPlant advances the ground truth through the full cart-pole
// dynamics with integ. The controller keeps designing on the linear model.
func WithNonlinearPlant(integ dynamo.Integrator) PendulumOption {
	return func(p *Pendulum) {
		p.truth = p.plant.Nonlinear()
		p.integ = integ
	}
}

// WithInitialState fixes the reset state instead of drawing a random angle.
func WithInitialState(x0 dynamo.State) PendulumOption {
	return func(p *Pendulum) { p.x0 = x0.Clone() }
}

// NewPendulum returns a pendulum at its reset state. By default the truth
// is the linear plant stepped with Euler, which matches the discrete model
// exactly.
func NewPendulum(plant *physics.CartPole, ctrl dynamo.Controller, rng *rand.Rand, opts ...PendulumOption) (*Pendulum, error) {
	if plant == nil || ctrl == nil || rng == nil {
		return nil, dynamo.NewConfigError("pendulum", nil, "plant, controller and rng are required")
	}
	if err := plant.Validate(); err != nil {
		return nil, err
	}

	p := &Pendulum{
		plant: plant,
		truth: plant,
		integ: integrators.NewEuler(),
		ctrl:  ctrl,
		rng:   rng,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.x0 != nil && len(p.x0) != physics.CartPoleStates {
		return nil, dynamo.NewConfigError("init_state", p.x0, "must have 4 components")
	}
	p.Reset()
	return p, nil
}

// Step computes the command for the current state and advances the plant.
//
// A gain built from an unconverged Riccati iterate is used with a warning.
// When the controller cannot produce a command the previous one is held.
// Other controller errors abort the tick with the state untouched.
func (p *Pendulum) Step(dt float64) (Sample, error) {
	s := Sample{}

	u, err := p.ctrl.Compute(p.x, p.t, dt)
	switch {
	case err == nil:
	case errors.Is(err, dynamo.ErrNonConvergent):
		s.Events = append(s.Events, dynamo.EventNonConvergent)
		s.Warning = err
	case errors.Is(err, dynamo.ErrInverseFailed):
		s.Events = append(s.Events, dynamo.EventFallback)
		s.Warning = err
		u = p.u.Clone()
	default:
		return s, fmt.Errorf("pendulum control: %w", err)
	}

	next := p.integ.Step(p.truth, p.x, u, p.t, dt)
	if !next.IsValid() {
		return s, fmt.Errorf("%w: %w", dynamo.ErrInvalidState, dynamo.SimError{Time: p.t, Step: p.step, Message: "pendulum state diverged"})
	}

	p.x = next
	p.u = u
	p.t += dt
	p.step++

	s.Time = p.t
	s.State = p.x.Clone()
	s.Control = p.u.Clone()
	return s, nil
}

// Reset restores the initial state, or a fresh random angle in
// [−MaxInitialAngle, MaxInitialAngle) when none was fixed, and clears any
// controller memory.
func (p *Pendulum) Reset() {
	if p.x0 != nil {
		p.x = p.x0.Clone()
	} else {
		angle := distuv.Uniform{Min: -MaxInitialAngle, Max: MaxInitialAngle, Src: p.rng}
		p.x = dynamo.State{0, 0, angle.Rand(), 0}
	}
	p.u = make(dynamo.Control, physics.CartPoleInputs)
	p.t = 0
	p.step = 0

	if r, ok := p.ctrl.(dynamo.Resetter); ok {
		r.ResetState()
	}
}

func (p *Pendulum) State() dynamo.State {
	return p.x.Clone()
}

func (p *Pendulum) Time() float64 {
	return p.t
}

// Controller exposes the controller for live tuning.
func (p *Pendulum) Controller() dynamo.Controller {
	return p.ctrl
}

// PendulumSnapshot is the synchronisable part of a Pendulum.
type PendulumSnapshot struct {
	State   dynamo.State
	Control dynamo.Control
}

func (p *Pendulum) snapshot() *PendulumSnapshot {
	return &PendulumSnapshot{State: p.x.Clone(), Control: p.u.Clone()}
}

func (p *Pendulum) restore(s *PendulumSnapshot) {
	p.x = s.State.Clone()
	p.u = s.Control.Clone()
}
