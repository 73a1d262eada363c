package integrators

import "github.com/san-kum/robosim/internal/dynamo"

// RK4 is the classical fourth-order Runge-Kutta integrator. The input is
// held constant across the step (zero-order hold).
type RK4 struct {
	k [4]dynamo.State
	y dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.y) == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.y = make(dynamo.State, n)
}

// stage evaluates f at x + h·k into dst.
func (r *RK4) stage(dst dynamo.State, dyn dynamo.System, x, k dynamo.State, h float64, u dynamo.Control, t float64) {
	for i := range x {
		r.y[i] = x[i] + h*k[i]
	}
	copy(dst, dyn.Derive(r.y, u, t))
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	r.ensureScratch(n)

	copy(r.k[0], dyn.Derive(x, u, t))
	r.stage(r.k[1], dyn, x, r.k[0], dt/2, u, t+dt/2)
	r.stage(r.k[2], dyn, x, r.k[1], dt/2, u, t+dt/2)
	r.stage(r.k[3], dyn, x, r.k[2], dt, u, t+dt)

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
	}
	return result
}

// Propagate advances x over dt in substeps equal steps of integ, holding u.
func Propagate(integ dynamo.Integrator, dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64, substeps int) dynamo.State {
	if substeps < 1 {
		substeps = 1
	}
	h := dt / float64(substeps)
	for i := 0; i < substeps; i++ {
		x = integ.Step(dyn, x, u, t+float64(i)*h, h)
	}
	return x
}
