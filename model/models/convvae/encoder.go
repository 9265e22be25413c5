package convvae

import (
	"golang.org/x/exp/rand"

	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/ml/nn"
)

// Encoder maps C×63×63 images to the mean and log-variance of the latent
// distribution.
type Encoder struct {
	Layers nn.Sequential `torch:"encoder"`
	FC11   *nn.Linear    `torch:"fc11"`
	FC12   *nn.Linear    `torch:"fc12"`
}

func newEncoder(channels, bottleneck int, rng *rand.Rand) (*Encoder, error) {
	layers, err := nn.NewConvStack(EncoderSchedule(channels), rng)
	if err != nil {
		return nil, err
	}

	return &Encoder{
		Layers: layers,
		FC11:   nn.NewLinear(Features, bottleneck, rng),
		FC12:   nn.NewLinear(Features, bottleneck, rng),
	}, nil
}

func (e *Encoder) Forward(x *ml.Tensor) (mu, logvar *ml.Tensor, err error) {
	x, err = e.Layers.Forward(x)
	if err != nil {
		return nil, nil, err
	}

	x, err = x.Reshape(-1, Features)
	if err != nil {
		return nil, nil, err
	}

	if mu, err = e.FC11.Forward(x); err != nil {
		return nil, nil, err
	}
	if logvar, err = e.FC12.Forward(x); err != nil {
		return nil, nil, err
	}
	return mu, logvar, nil
}
