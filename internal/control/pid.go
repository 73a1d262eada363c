package control

import (
	"errors"

	"github.com/san-kum/robosim/internal/dynamo"
)

// PID is a scalar proportional-integral-derivative controller. As a
// dynamo.Controller it regulates state component Index towards Target.
type PID struct {
	Kp     float64
	Ki     float64
	Kd     float64
	Target float64
	Index  int

	integral float64
	prevErr  float64
}

func NewPID(kp, ki, kd, target float64, index int) (*PID, error) {
	if index < 0 {
		return nil, dynamo.NewConfigError("index", index, "must be non-negative")
	}
	return &PID{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		Target: target,
		Index:  index,
	}, nil
}

// Control advances the controller by one tick with error err. A
// non-positive dt is rejected and leaves the integral untouched.
func (p *PID) Control(err, dt float64) (float64, error) {
	if !(dt > 0) {
		return 0, dynamo.NewConfigError("dt", dt, "must be positive")
	}

	p.integral += err * dt
	derivative := (err - p.prevErr) / dt
	p.prevErr = err

	return p.Kp*err + p.Ki*p.integral + p.Kd*derivative, nil
}

func (p *PID) Compute(x dynamo.State, t, dt float64) (dynamo.Control, error) {
	if p.Index >= len(x) {
		return nil, dynamo.ErrDimensionMismatch
	}
	u, err := p.Control(p.Target-x[p.Index], dt)
	if err != nil {
		return nil, err
	}
	return dynamo.Control{u}, nil
}

// ResetState clears the integral and previous error; gains are kept.
func (p *PID) ResetState() {
	p.integral = 0
	p.prevErr = 0
}

// Integral returns the accumulated error.
func (p *PID) Integral() float64 {
	return p.integral
}

func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":     p.Kp,
		"Ki":     p.Ki,
		"Kd":     p.Kd,
		"Target": p.Target,
	}
}

func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	case "Target":
		p.Target = value
	default:
		return errors.New("pid: unknown parameter " + name)
	}
	return nil
}
