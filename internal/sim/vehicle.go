package sim

import (
	"errors"
	"fmt"

	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/linalg"
	"github.com/san-kum/robosim/internal/localization"
	"github.com/san-kum/robosim/internal/physics"
	"gonum.org/v1/gonum/mat"
)

// Vehicle is a unicycle driven by a constant command and tracked by a
// particle filter from range observations.
type Vehicle struct {
	filter    *localization.Filter
	landmarks []physics.Landmark
	input     localization.Input

	truth *mat.VecDense
	dr    *mat.VecDense
	cov   *mat.SymDense
	t     float64
}

func NewVehicle(filter *localization.Filter, landmarks []physics.Landmark, input localization.Input) (*Vehicle, error) {
	if filter == nil {
		return nil, dynamo.NewConfigError("filter", nil, "missing")
	}
	v := &Vehicle{
		filter:    filter,
		landmarks: append([]physics.Landmark(nil), landmarks...),
		input:     input,
	}
	v.Reset()
	return v, nil
}

// Step runs one observation and localization tick. A degenerate
// population is re-initialised by the filter and reported as a warning.
func (v *Vehicle) Step(dt float64) (Sample, error) {
	s := Sample{}
	if !(dt > 0) {
		return s, dynamo.NewConfigError("dt", dt, "must be positive")
	}

	z, ud := v.filter.Observe(v.truth, v.dr, v.input, v.landmarks, dt)
	cov, err := v.filter.Localize(z, ud, dt)
	switch {
	case err == nil:
	case errors.Is(err, dynamo.ErrDegenerateWeights):
		s.Events = append(s.Events, dynamo.EventDegenerate)
		s.Warning = err
	default:
		return s, fmt.Errorf("vehicle localize: %w", err)
	}
	if v.filter.Resampled() {
		s.Events = append(s.Events, dynamo.EventResample)
	}

	v.cov = cov
	v.t += dt

	s.Time = v.t
	s.State = linalg.Slice(v.truth)
	s.Control = dynamo.Control{ud.V, ud.YawRate}
	s.Estimate = linalg.Slice(v.filter.Estimate())
	s.DeadReckoning = linalg.Slice(v.dr)
	s.CovTrace = mat.Trace(cov)
	return s, nil
}

// Reset puts the truth, dead reckoning and every particle at the origin.
func (v *Vehicle) Reset() {
	v.truth = mat.NewVecDense(physics.VehicleStates, nil)
	v.dr = mat.NewVecDense(physics.VehicleStates, nil)
	v.cov = mat.NewSymDense(3, nil)
	v.t = 0
	v.filter.Reset(v.truth)
}

func (v *Vehicle) State() dynamo.State {
	return linalg.Slice(v.truth)
}

func (v *Vehicle) Estimate() dynamo.State {
	return linalg.Slice(v.filter.Estimate())
}

// Covariance returns the last (x, y, heading) covariance.
func (v *Vehicle) Covariance() *mat.SymDense {
	out := mat.NewSymDense(3, nil)
	out.CopySym(v.cov)
	return out
}

func (v *Vehicle) Filter() *localization.Filter {
	return v.filter
}

func (v *Vehicle) Time() float64 {
	return v.t
}

// VehicleSnapshot is the synchronisable part of a Vehicle: its true pose.
// Estimates stay with each filter.
type VehicleSnapshot struct {
	Truth dynamo.State
}

func (v *Vehicle) snapshot() *VehicleSnapshot {
	return &VehicleSnapshot{Truth: linalg.Slice(v.truth)}
}

func (v *Vehicle) restore(s *VehicleSnapshot) {
	v.truth = linalg.Vec(s.Truth)
}
