package sim

import (
	"fmt"

	"github.com/san-kum/robosim/internal/dynamo"
)

// Agent is one simulation hosted by a Simulator. It holds exactly one of
// the variants named by its Kind.
type Agent struct {
	kind     Kind
	pendulum *Pendulum
	vehicle  *Vehicle
}

func PendulumAgent(p *Pendulum) Agent {
	return Agent{kind: KindPendulum, pendulum: p}
}

func VehicleAgent(v *Vehicle) Agent {
	return Agent{kind: KindVehicle, vehicle: v}
}

func (a Agent) Kind() Kind {
	return a.kind
}

// Pendulum returns the pendulum variant, or nil.
func (a Agent) Pendulum() *Pendulum {
	return a.pendulum
}

// Vehicle returns the vehicle variant, or nil.
func (a Agent) Vehicle() *Vehicle {
	return a.vehicle
}

func (a Agent) Step(dt float64) (Sample, error) {
	switch a.kind {
	case KindPendulum:
		return a.pendulum.Step(dt)
	case KindVehicle:
		return a.vehicle.Step(dt)
	}
	return Sample{}, fmt.Errorf("step: %w: %v", dynamo.ErrIncompatible, a.kind)
}

func (a Agent) Reset() {
	switch a.kind {
	case KindPendulum:
		a.pendulum.Reset()
	case KindVehicle:
		a.vehicle.Reset()
	}
}

// State returns the true state of the agent.
func (a Agent) State() dynamo.State {
	switch a.kind {
	case KindPendulum:
		return a.pendulum.State()
	case KindVehicle:
		return a.vehicle.State()
	}
	return nil
}

// Snapshot is a typed copy of an agent's synchronisable state. Exactly one
// of Pendulum and Vehicle is set, matching Kind.
type Snapshot struct {
	Kind     Kind
	Pendulum *PendulumSnapshot
	Vehicle  *VehicleSnapshot
}

func (a Agent) Snapshot() Snapshot {
	s := Snapshot{Kind: a.kind}
	switch a.kind {
	case KindPendulum:
		s.Pendulum = a.pendulum.snapshot()
	case KindVehicle:
		s.Vehicle = a.vehicle.snapshot()
	}
	return s
}

// Restore copies s into the agent. A snapshot of another kind is rejected
// with dynamo.ErrIncompatible.
func (a Agent) Restore(s Snapshot) error {
	if s.Kind != a.kind {
		return fmt.Errorf("restore %v into %v: %w", s.Kind, a.kind, dynamo.ErrIncompatible)
	}
	switch a.kind {
	case KindPendulum:
		if s.Pendulum == nil {
			return fmt.Errorf("restore: empty pendulum snapshot: %w", dynamo.ErrIncompatible)
		}
		a.pendulum.restore(s.Pendulum)
	case KindVehicle:
		if s.Vehicle == nil {
			return fmt.Errorf("restore: empty vehicle snapshot: %w", dynamo.ErrIncompatible)
		}
		a.vehicle.restore(s.Vehicle)
	}
	return nil
}
