package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector with invalid dimensions or values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrContextCanceled indicates the simulation was interrupted.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrInverseFailed indicates a pseudo-inverse could not be formed within
	// the requested tolerance. Fatal for the control tick that hit it.
	ErrInverseFailed = errors.New("dynamo: matrix inverse failed")

	// ErrNonConvergent indicates an iteration hit its limit before meeting
	// the tolerance. The accompanying result is the last iterate.
	ErrNonConvergent = errors.New("dynamo: iteration did not converge")

	// ErrDegenerateWeights indicates every particle weight collapsed to zero.
	ErrDegenerateWeights = errors.New("dynamo: degenerate particle weights")

	// ErrInvalidConfig is the root of every ConfigurationError.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrIncompatible indicates a snapshot restored into a different kind of simulation.
	ErrIncompatible = errors.New("dynamo: incompatible simulation kind")
)

// NumericalError wraps a numerical failure with the operation and the
// iteration it happened at.
type NumericalError struct {
	Op         string
	Iterations int
	Residual   float64
	Wrapped    error
}

func (e *NumericalError) Error() string {
	if e.Iterations > 0 {
		return fmt.Sprintf("%s: %v after %d iterations (residual %.3g)", e.Op, e.Wrapped, e.Iterations, e.Residual)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Wrapped)
}

func (e *NumericalError) Unwrap() error {
	return e.Wrapped
}

// ConfigurationError reports a parameter rejected at construction time.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfig
}

// NewConfigError is shorthand for building a ConfigurationError.
func NewConfigError(field string, value any, reason string) error {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}
