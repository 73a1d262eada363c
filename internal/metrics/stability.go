package metrics

import (
	"math"

	"github.com/san-kum/robosim/internal/dynamo"
)

// Stability is the fraction of samples whose watched state components all
// stay within threshold. With no indices every component is watched.
type Stability struct {
	threshold  float64
	indices    []int
	violations int
	samples    int
}

func NewStability(threshold float64, indices ...int) *Stability {
	return &Stability{
		threshold: threshold,
		indices:   indices,
	}
}

func (s *Stability) Name() string {
	return "stability"
}

func (s *Stability) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	if !s.within(x) {
		s.violations++
	}
}

func (s *Stability) within(x dynamo.State) bool {
	if len(s.indices) == 0 {
		for _, v := range x {
			if !(math.Abs(v) <= s.threshold) {
				return false
			}
		}
		return true
	}
	for _, i := range s.indices {
		if i >= len(x) || !(math.Abs(x[i]) <= s.threshold) {
			return false
		}
	}
	return true
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
