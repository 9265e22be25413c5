// Package siamese implements SiameseResNet, which scores the difference
// between an image and an object exemplar with one shared ResNet backbone.
package siamese

import (
	"fmt"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/ml/nn"
	"github.com/7blacky7/gmncount/model"
)

const Name = "SiameseResNet"

const backbonePrefix = "resnet_model"

func init() {
	model.Register(Name, model.KindComparator, func(o model.Options) (model.Model, error) {
		cfg := ResNet50Config()
		cfg.InChannels = o.Channels

		var provider BackboneProvider = RandomBackbone{Seed: o.Seed}
		if o.BackboneWeights != "" {
			provider = CheckpointBackbone{Path: o.BackboneWeights}
		}
		return New(cfg, o.OutputSize, provider, o.Seed)
	})
}

type Model struct {
	// Backbone is applied to both inputs.
	Backbone *ResNet    `torch:"resnet_model"`
	Output   *nn.Linear `torch:"output"`
}

// New asks provider for the backbone, replaces its classifier with
// FullyConnectedLayers and adds the output projection.
func New(cfg ResNetConfig, outputSize int, provider BackboneProvider, seed uint64) (*Model, error) {
	if outputSize <= 0 {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidOutputSize, outputSize)
	}

	backbone, err := provider.Backbone(cfg)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed + 1))
	backbone.FC = newHead(cfg.Features(), rng)
	return &Model{
		Backbone: backbone,
		Output:   nn.NewLinear(Embedding, outputSize, rng),
	}, nil
}

func (m *Model) Name() string { return Name }

// Embed runs the shared backbone and head on a batch of images.
func (m *Model) Embed(x *ml.Tensor) (*ml.Tensor, error) {
	return m.Backbone.Forward(x)
}

// Forward scores |f(x) - f(xObject)|. Both branches read the same weights
// and run concurrently.
func (m *Model) Forward(x, xObject *ml.Tensor) (*ml.Tensor, error) {
	var a, b *ml.Tensor
	var g errgroup.Group
	g.Go(func() (err error) {
		a, err = m.Embed(x)
		return err
	})
	g.Go(func() (err error) {
		b, err = m.Embed(xObject)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d, err := a.AbsDiff(b)
	if err != nil {
		return nil, err
	}
	return m.Output.Forward(d)
}
