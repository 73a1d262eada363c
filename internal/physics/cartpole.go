package physics

import (
	"math"

	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

const (
	// CartPoleStates is the state dimension: lateral position, lateral
	// velocity, rod angle, angular velocity.
	CartPoleStates = 4
	// CartPoleInputs is the input dimension: horizontal force on the cart.
	CartPoleInputs = 1

	Gravity = 9.81
)

// CartPole is an inverted pendulum on a cart, a point mass on a massless
// rod. The angle is measured from upright.
type CartPole struct {
	BarLength float64 // [m]
	CartMass  float64 // [kg]
	BallMass  float64 // [kg]
	Gravity   float64 // [m/s^2]
}

func NewCartPole() *CartPole {
	return &CartPole{
		BarLength: 2.0,
		CartMass:  1.0,
		BallMass:  1.0,
		Gravity:   Gravity,
	}
}

// Validate rejects non-physical parameters.
func (c *CartPole) Validate() error {
	switch {
	case c.BarLength <= 0:
		return dynamo.NewConfigError("bar length", c.BarLength, "must be positive")
	case c.CartMass <= 0:
		return dynamo.NewConfigError("cart mass", c.CartMass, "must be positive")
	case c.BallMass < 0:
		return dynamo.NewConfigError("ball mass", c.BallMass, "must be non-negative")
	case c.Gravity < 0:
		return dynamo.NewConfigError("gravity", c.Gravity, "must be non-negative")
	}
	return nil
}

func (c *CartPole) StateDim() int {
	return CartPoleStates
}

func (c *CartPole) ControlDim() int {
	return CartPoleInputs
}

// Continuous returns the plant linearised about the upright equilibrium.
func (c *CartPole) Continuous() (A, B *mat.Dense) {
	l, M, m, g := c.BarLength, c.CartMass, c.BallMass, c.Gravity

	A = mat.NewDense(4, 4, []float64{
		0, 1, 0, 0,
		0, 0, m * g / M, 0,
		0, 0, 0, 1,
		0, 0, g * (M + m) / (l * M), 0,
	})
	B = mat.NewDense(4, 1, []float64{
		0,
		1 / M,
		0,
		1 / (l * M),
	})
	return A, B
}

// Discretize returns the first-order (Euler) discretisation
// A_d = I + A_c·dt, B_d = B_c·dt. dt must be positive.
func (c *CartPole) Discretize(dt float64) (A, B *mat.Dense) {
	ac, bc := c.Continuous()

	A = linalg.Eye(CartPoleStates)
	ac.Scale(dt, ac)
	A.Add(A, ac)

	B = mat.NewDense(CartPoleStates, CartPoleInputs, nil)
	B.Scale(dt, bc)
	return A, B
}

// Model implements control.StateSpace.
func (c *CartPole) Model(dt float64) (A, B *mat.Dense) {
	return c.Discretize(dt)
}

// Derive evaluates the linearised dynamics, so that an Euler step of Derive
// reproduces Discretize exactly.
func (c *CartPole) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	ac, bc := c.Continuous()
	dx := linalg.MatVec(ac, linalg.Vec(x))
	if len(u) > 0 {
		dx.AddScaledVec(dx, u[0], bc.ColView(0))
	}
	return dynamo.State(linalg.Slice(dx))
}

// Nonlinear returns the full rigid-body dynamics of the same cart-pole, for
// propagating ground truth with an integrator.
func (c *CartPole) Nonlinear() dynamo.System {
	return nonlinearCartPole{c}
}

type nonlinearCartPole struct {
	*CartPole
}

// Derive uses the point-mass cart-pole equations in the sign convention of
// Continuous: linearising about theta = 0 gives back A_c and B_c.
func (n nonlinearCartPole) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	vel := x[1]
	theta := x[2]
	omega := x[3]

	force := 0.0
	if len(u) > 0 {
		force = u[0]
	}

	M := n.CartMass
	m := n.BallMass
	l := n.BarLength
	g := n.Gravity

	sint := math.Sin(theta)
	cost := math.Cos(theta)

	den := M + m*sint*sint
	xacc := (force - m*l*omega*omega*sint + m*g*sint*cost) / den
	thetaacc := (g*sint*(M+m) + cost*(force-m*l*omega*omega*sint)) / (l * den)

	return dynamo.State{vel, xacc, omega, thetaacc}
}

// Energy returns the mechanical energy of the full cart-pole at x. The
// ball sits at (x − l·sin θ, l·cos θ), so the upright pole stores m·g·l.
func (c *CartPole) Energy(x dynamo.State) float64 {
	vel, theta, omega := x[1], x[2], x[3]
	l := c.BarLength

	bx := vel - l*omega*math.Cos(theta)
	by := -l * omega * math.Sin(theta)

	kinetic := 0.5*c.CartMass*vel*vel + 0.5*c.BallMass*(bx*bx+by*by)
	potential := c.BallMass * c.Gravity * l * math.Cos(theta)
	return kinetic + potential
}
