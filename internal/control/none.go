package control

import "github.com/san-kum/cartpoles/internal/dynamo"

// None applies zero volts; the plant runs open loop.
type None struct {
	dim int
}

func NewNone(dim int) *None {
	return &None{
		dim: dim,
	}
}

func (n *None) Compute(x dynamo.State, t float64) dynamo.Control {
	return make(dynamo.Control, n.dim)
}
