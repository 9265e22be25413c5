package convvae

import (
	"golang.org/x/exp/rand"

	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/ml/nn"
)

// Decoder maps bottleneck vectors back to C×63×63 images in [-1, 1].
type Decoder struct {
	FC4    *nn.Linear    `torch:"fc4"`
	FC4BN  *nn.BatchNorm `torch:"fc4_bn"`
	Layers nn.Sequential `torch:"decoder"`
}

func newDecoder(channels, bottleneck int, rng *rand.Rand) (*Decoder, error) {
	layers, err := nn.NewTransposedStack(DecoderSchedule(channels), rng)
	if err != nil {
		return nil, err
	}

	return &Decoder{
		FC4:    nn.NewLinear(bottleneck, Features, rng),
		FC4BN:  nn.NewBatchNorm(Features),
		Layers: layers,
	}, nil
}

func (d *Decoder) Forward(z *ml.Tensor) (*ml.Tensor, error) {
	x, err := d.FC4.Forward(z)
	if err != nil {
		return nil, err
	}
	if x, err = d.FC4BN.Forward(x); err != nil {
		return nil, err
	}
	if x, err = x.Reshape(-1, Features, 1, 1); err != nil {
		return nil, err
	}
	if x, err = d.Layers.Forward(x); err != nil {
		return nil, err
	}
	return x.Tanh(), nil
}
