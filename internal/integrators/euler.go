package integrators

import "github.com/san-kum/robosim/internal/dynamo"

// Euler is the explicit first-order integrator. Applied to the linearised
// cart-pole it reproduces the discrete model used by the LQR solver.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	return x.Add(dyn.Derive(x, u, t).Scale(dt))
}
