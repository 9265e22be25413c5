// Package convvae implements ConvVAEGMN, the convolutional variational
// autoencoder used for 63×63 exemplar templates.
package convvae

import (
	"fmt"
	"math"
	"slices"

	"golang.org/x/exp/rand"

	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/ml/nn"
	"github.com/7blacky7/gmncount/model"
)

const Name = "ConvVAEGMN"

func init() {
	model.Register(Name, model.KindAutoencoder, func(o model.Options) (model.Model, error) {
		return New(o)
	})
	model.Alias("ConvVAE", Name)
}

type Model struct {
	Encoder *Encoder `torch:"encoder"`
	Decoder *Decoder `torch:"decoder"`

	channels int
	device   ml.Device
	noise    NoiseSource
}

// New builds an untrained model. Both schedules are validated before any
// layer is allocated.
func New(o model.Options) (*Model, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if o.InputSize != InputSize {
		return nil, fmt.Errorf("%w: %s is built for %dx%d input, got %d", model.ErrInvalidInputSize, Name, InputSize, InputSize, o.InputSize)
	}
	if err := ValidateSchedule(EncoderSchedule(o.Channels), DecoderSchedule(o.Channels)); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(o.Seed))
	enc, err := newEncoder(o.Channels, o.Bottleneck, rng)
	if err != nil {
		return nil, err
	}
	dec, err := newDecoder(o.Channels, o.Bottleneck, rng)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Encoder:  enc,
		Decoder:  dec,
		channels: o.Channels,
		device:   o.Device,
		noise:    DefaultNoise(),
	}
	if o.Seed != 0 {
		m.noise = SeededNoise(o.Seed)
	}
	return m, nil
}

func (m *Model) Name() string { return Name }

// Channels returns the image channel count the model was built for.
func (m *Model) Channels() int { return m.channels }

func (m *Model) Device() ml.Device { return m.device }

// SetNoise replaces the noise source used by Reparametrize.
func (m *Model) SetNoise(n NoiseSource) {
	m.noise = n
}

// IgnoredKeys lists checkpoint entries the forward pass never reads. The
// decoder declares fc3_bn but never applies it.
func (m *Model) IgnoredKeys() []string {
	return []string{"decoder.fc3_bn."}
}

// Validate rejects loaded weights with negative running variances.
func (m *Model) Validate() error {
	bns := []*nn.BatchNorm{m.Decoder.FC4BN}
	for _, layers := range []nn.Sequential{m.Encoder.Layers, m.Decoder.Layers} {
		for _, l := range layers {
			if bn, ok := l.(*nn.BatchNorm); ok {
				bns = append(bns, bn)
			}
		}
	}

	for _, bn := range bns {
		for _, v := range bn.RunningVar.Floats() {
			if v < 0 {
				return fmt.Errorf("%s: negative running variance %v", Name, v)
			}
		}
	}
	return nil
}

func (m *Model) Encode(x *ml.Tensor) (mu, logvar *ml.Tensor, err error) {
	return m.Encoder.Forward(x)
}

func (m *Model) Decode(z *ml.Tensor) (*ml.Tensor, error) {
	return m.Decoder.Forward(z)
}

// Reparametrize returns z = mu + eps*exp(0.5*logvar) with eps drawn from the
// model's noise source.
func (m *Model) Reparametrize(mu, logvar *ml.Tensor) (*ml.Tensor, error) {
	return Reparametrize(mu, logvar, m.noise)
}

// Reparametrize is the stateless form of Model.Reparametrize.
func Reparametrize(mu, logvar *ml.Tensor, noise NoiseSource) (*ml.Tensor, error) {
	if !slices.Equal(mu.Shape(), logvar.Shape()) {
		return nil, &ml.ShapeError{Op: "reparametrize", Want: mu.Shape(), Got: logvar.Shape(), Msg: "mean and log-variance differ"}
	}

	z := mu.Clone()
	data := z.Floats()
	lv := logvar.Floats()
	for i := range data {
		std := math.Exp(0.5 * float64(lv[i]))
		data[i] += float32(noise() * std)
	}
	return z, nil
}

// Forward encodes x, samples z and decodes it.
func (m *Model) Forward(x *ml.Tensor) (decoded, mu, logvar *ml.Tensor, err error) {
	if mu, logvar, err = m.Encode(x); err != nil {
		return nil, nil, nil, err
	}

	z, err := m.Reparametrize(mu, logvar)
	if err != nil {
		return nil, nil, nil, err
	}

	if decoded, err = m.Decode(z); err != nil {
		return nil, nil, nil, err
	}
	return decoded, mu, logvar, nil
}

// Reconstruct decodes the latent mean, skipping the sampling step.
func (m *Model) Reconstruct(x *ml.Tensor) (*ml.Tensor, error) {
	mu, _, err := m.Encode(x)
	if err != nil {
		return nil, err
	}
	return m.Decode(mu)
}
