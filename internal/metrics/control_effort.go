package metrics

import (
	"math"

	"github.com/san-kum/robosim/internal/dynamo"
)

// ControlEffort is the RMS of the control vector norm over a run.
type ControlEffort struct {
	sumSq   float64
	peak    float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{}
}

func (c *ControlEffort) Name() string {
	return "control_effort"
}

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	n := dynamo.State(u).Norm()
	c.sumSq += n * n
	c.peak = math.Max(c.peak, n)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return math.Sqrt(c.sumSq / float64(c.samples))
}

// Peak returns the largest control norm seen.
func (c *ControlEffort) Peak() float64 {
	return c.peak
}

func (c *ControlEffort) Reset() {
	c.sumSq = 0
	c.peak = 0
	c.samples = 0
}
