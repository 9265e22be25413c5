package siamese

import (
	"golang.org/x/exp/rand"

	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/ml/nn"
)

// Embedding is the width of the vectors the head produces.
const Embedding = 128

// FullyConnectedLayers replaces the ResNet classifier: three ReLU layers
// down to Embedding. Dropout is inactive at inference time.
type FullyConnectedLayers struct {
	FC1 *nn.Linear `torch:"fc1"`
	FC2 *nn.Linear `torch:"fc2"`
	FC3 *nn.Linear `torch:"fc3"`

	dropout nn.Dropout
}

func newHead(features int, rng *rand.Rand) *FullyConnectedLayers {
	return &FullyConnectedLayers{
		FC1:     nn.NewLinear(features, 1024, rng),
		FC2:     nn.NewLinear(1024, 512, rng),
		FC3:     nn.NewLinear(512, Embedding, rng),
		dropout: nn.Dropout{P: 0.2},
	}
}

func (h *FullyConnectedLayers) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	var err error
	for _, fc := range []*nn.Linear{h.FC1, h.FC2, h.FC3} {
		if x, err = fc.Forward(x); err != nil {
			return nil, err
		}
		if x, err = h.dropout.Forward(x.ReLU()); err != nil {
			return nil, err
		}
	}
	return x, nil
}
