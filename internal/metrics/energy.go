package metrics

import (
	"math"

	"github.com/san-kum/robosim/internal/dynamo"
)

// EnergyFunc evaluates the mechanical energy of a plant state.
type EnergyFunc interface {
	Energy(x dynamo.State) float64
}

// EnergyDrift is the largest relative change of the plant energy from the
// first observed sample.
type EnergyDrift struct {
	plant    EnergyFunc
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift(plant EnergyFunc) *EnergyDrift {
	return &EnergyDrift{plant: plant}
}

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(x dynamo.State, u dynamo.Control, t float64) {
	energy := e.plant.Energy(x)
	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++

	if e.initial != 0 {
		drift := math.Abs(energy-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
