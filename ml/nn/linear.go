package nn

import (
	"golang.org/x/exp/rand"

	"github.com/7blacky7/gmncount/ml"
)

type Linear struct {
	Weight *ml.Tensor `torch:"weight"`
	Bias   *ml.Tensor `torch:"bias"`
}

// NewLinear allocates a Linear layer with torch default initialisation.
func NewLinear(in, out int, rng *rand.Rand) *Linear {
	rng = newRand(rng)
	return &Linear{
		Weight: uniform(rng, in, out, in),
		Bias:   uniform(rng, in, out),
	}
}

func (m *Linear) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	return ml.Linear(x, m.Weight, m.Bias)
}
