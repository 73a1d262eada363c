package metrics

import (
	"math"

	"github.com/san-kum/robosim/internal/dynamo"
)

// PositionError is the RMS planar distance between an estimate and the
// ground truth. Only the first two state components are compared.
type PositionError struct {
	sumSq   float64
	max     float64
	samples int
}

func NewPositionError() *PositionError {
	return &PositionError{}
}

func (p *PositionError) Name() string { return "position_rmse" }

func (p *PositionError) Observe(x dynamo.State, u dynamo.Control, t float64) {}

func (p *PositionError) ObserveEstimate(truth, estimate dynamo.State, t float64) {
	if len(truth) < 2 || len(estimate) < 2 {
		return
	}
	d := estimate[:2].Sub(truth[:2]).Norm()
	p.sumSq += d * d
	p.max = math.Max(p.max, d)
	p.samples++
}

func (p *PositionError) Value() float64 {
	if p.samples == 0 {
		return 0
	}
	return math.Sqrt(p.sumSq / float64(p.samples))
}

// Max returns the worst distance seen.
func (p *PositionError) Max() float64 {
	return p.max
}

func (p *PositionError) Reset() {
	p.sumSq = 0
	p.max = 0
	p.samples = 0
}

// EventCount counts one kind of event.
type EventCount struct {
	name  string
	event dynamo.Event
	count int
}

func NewEventCount(name string, e dynamo.Event) *EventCount {
	return &EventCount{name: name, event: e}
}

// NewResampleCount counts particle resampling events.
func NewResampleCount() *EventCount {
	return NewEventCount("resamples", dynamo.EventResample)
}

// NewFallbackCount counts ticks that held the previous command.
func NewFallbackCount() *EventCount {
	return NewEventCount("fallbacks", dynamo.EventFallback)
}

func (c *EventCount) Name() string { return c.name }

func (c *EventCount) Observe(x dynamo.State, u dynamo.Control, t float64) {}

func (c *EventCount) ObserveEvent(e dynamo.Event, t float64) {
	if e == c.event {
		c.count++
	}
}

func (c *EventCount) Value() float64 {
	return float64(c.count)
}

func (c *EventCount) Reset() {
	c.count = 0
}
