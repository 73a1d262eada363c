package control

import "github.com/san-kum/robosim/internal/dynamo"

// None always commands zero input; useful for watching the open-loop plant.
type None struct {
	dim int
}

func NewNone(dim int) *None {
	return &None{
		dim: dim,
	}
}

func (n *None) Compute(x dynamo.State, t, dt float64) (dynamo.Control, error) {
	return make(dynamo.Control, n.dim), nil
}
