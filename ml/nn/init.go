package nn

import (
	"math"

	"golang.org/x/exp/rand"

	"github.com/7blacky7/gmncount/ml"
)

func newRand(rng *rand.Rand) *rand.Rand {
	if rng == nil {
		return rand.New(rand.NewSource(0))
	}
	return rng
}

// uniform fills a tensor from U(-1/sqrt(fanIn), 1/sqrt(fanIn)), the torch
// default for linear and convolution parameters.
func uniform(rng *rand.Rand, fanIn int, shape ...int) *ml.Tensor {
	t := ml.Zeros(shape...)
	bound := float32(1 / math.Sqrt(float64(fanIn)))
	data := t.Floats()
	for i := range data {
		data[i] = (rng.Float32()*2 - 1) * bound
	}
	return t
}
