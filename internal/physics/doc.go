// Package physics provides the plant models driven by the controllers and
// the localization filter.
//
//   - [CartPole]: inverted pendulum on a cart. [CartPole.Discretize] yields
//     the Euler-discretised linear pair (A, B); [CartPole.Nonlinear] the
//     full dynamics as a [dynamo.System] for integrator-driven ground truth.
//   - [Vehicle]: planar unicycle motion model used by the particle filter.
//   - [Landmark]: known range beacon.
//
// # Discretisation
//
//	plant := physics.NewCartPole()
//	A, B := plant.Discretize(0.1)
//	// x[k+1] = A·x[k] + B·u[k]
//
// Discretize is pure; dt must be positive.
package physics
