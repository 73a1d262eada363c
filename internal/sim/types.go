package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/robosim/internal/dynamo"
)

// Kind enumerates the simulations the simulator can host.
type Kind int

const (
	KindPendulum Kind = iota
	KindVehicle
)

func (k Kind) String() string {
	switch k {
	case KindPendulum:
		return "pendulum"
	case KindVehicle:
		return "vehicle"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts the scenario names used in configuration files.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "pendulum", "cartpole":
		return KindPendulum, nil
	case "vehicle", "pf":
		return KindVehicle, nil
	}
	return 0, dynamo.NewConfigError("scenario", s, "unknown simulation kind")
}

type Config struct {
	Dt       float64
	Duration float64
}

func (c Config) Validate() error {
	if !(c.Dt > 0) {
		return dynamo.NewConfigError("dt", c.Dt, "must be positive")
	}
	if !(c.Duration > 0) {
		return dynamo.NewConfigError("duration", c.Duration, "must be positive")
	}
	return nil
}

// Steps returns the number of ticks that fit in Duration.
func (c Config) Steps() int {
	return int(math.Round(c.Duration / c.Dt))
}

// Sample is the outcome of one agent tick.
type Sample struct {
	Time    float64
	State   dynamo.State
	Control dynamo.Control

	// Vehicle only.
	Estimate      dynamo.State
	DeadReckoning dynamo.State
	CovTrace      float64

	// Events that happened during the tick.
	Events []dynamo.Event
	// Warning is a non-fatal error raised during the tick.
	Warning error
}

// Result is the recorded trajectory of one agent.
type Result struct {
	Kind          Kind
	States        []dynamo.State
	Controls      []dynamo.Control
	Estimates     []dynamo.State
	DeadReckoning []dynamo.State
	CovTrace      []float64
	Times         []float64
	Metrics       map[string]float64
	StepsTaken    int
	Events        map[string]int
}
