// Package control provides feedback controllers for the cart-pole plant.
//
// Controllers implement the [dynamo.Controller] interface:
//
//   - [LQR]: infinite-horizon discrete LQR, gain redesigned every tick from
//     a [StateSpace] model by fixed-point Riccati iteration ([SolveDARE])
//   - [PID]: scalar proportional-integral-derivative controller
//   - [None]: zero control
//
// The free functions [DLQR] and [LQRControl] work on bare matrices:
//
//	A, B := physics.NewCartPole().Discretize(0.1)
//	K, err := control.DLQR(A, B, Q, R, 0.01, 150)
//	if errors.Is(err, dynamo.ErrNonConvergent) {
//		// K is still usable, built from the last Riccati iterate
//	}
//
// [BuildQPMatrices] assembles the matrices of a linear MPC problem; no QP
// solver is bundled.
//
// Controllers implementing [dynamo.Configurable] support live tuning.
package control
