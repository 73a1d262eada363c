package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

type Control []float64

func (c Control) Clone() Control {
	out := make(Control, len(c))
	copy(out, c)
	return out
}

// System is a continuous-time plant dX/dt = f(X, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// Controller computes the input for one control tick. Implementations must
// not mutate x and must leave their own state untouched when they fail.
type Controller interface {
	Compute(x State, t, dt float64) (Control, error)
}

// Resetter is implemented by controllers that carry state between ticks.
type Resetter interface {
	ResetState()
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

// EstimateMetric is implemented by metrics that compare an estimate with
// the ground truth.
type EstimateMetric interface {
	ObserveEstimate(truth, estimate State, t float64)
}

// Event is a discrete occurrence during a tick that metrics may count.
type Event uint8

const (
	// EventResample marks a particle resampling.
	EventResample Event = iota + 1
	// EventDegenerate marks a particle population re-initialisation.
	EventDegenerate
	// EventNonConvergent marks a gain built from an unconverged Riccati iterate.
	EventNonConvergent
	// EventFallback marks a tick that held the previous command.
	EventFallback
)

func (e Event) String() string {
	switch e {
	case EventResample:
		return "resample"
	case EventDegenerate:
		return "degenerate"
	case EventNonConvergent:
		return "non_convergent"
	case EventFallback:
		return "fallback"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// EventMetric is implemented by metrics that count events.
type EventMetric interface {
	ObserveEvent(e Event, t float64)
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}
