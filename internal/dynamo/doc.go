// Package dynamo provides the shared kernel of the robotics simulator.
//
// The package defines the vocabulary every other package speaks:
//
//   - [State] and [Control]: plain vectors exchanged between plants and controllers
//   - [System]: continuous-time plant (dX/dt = f(X, u, t))
//   - [Integrator]: numerical integrator interface
//   - [Controller]: per-tick feedback controller
//   - [Metric]: run diagnostics
//
// # Errors
//
// Numerical failures are reported as [*NumericalError] wrapping
// [ErrInverseFailed] or [ErrNonConvergent]; rejected parameters as
// [*ConfigurationError]. Use errors.Is to classify:
//
//	k, err := control.DLQR(A, B, Q, R, eps, maxIter)
//	if errors.Is(err, dynamo.ErrInverseFailed) {
//	    // hold the previous command
//	}
//
// # Thread Safety
//
// Nothing in this package or its consumers is safe for concurrent use.
// Concurrent agents each own their controller, model and filter.
package dynamo
