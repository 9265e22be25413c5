package siamese

import (
	"fmt"
	"strings"

	"golang.org/x/exp/rand"

	"github.com/7blacky7/gmncount/checkpoint"
	"github.com/7blacky7/gmncount/model"
)

// BackboneProvider supplies the backbone before the head is attached. It
// stands in for a pretrained model zoo.
type BackboneProvider interface {
	Backbone(cfg ResNetConfig) (*ResNet, error)
}

// RandomBackbone returns an untrained backbone.
type RandomBackbone struct {
	Seed uint64
}

func (p RandomBackbone) Backbone(cfg ResNetConfig) (*ResNet, error) {
	return NewResNet(cfg, rand.New(rand.NewSource(p.Seed)))
}

// CheckpointBackbone loads pretrained weights from a file. Plain torchvision
// checkpoints and SiameseResNet checkpoints (keys under resnet_model.) are
// both accepted; the ImageNet classifier is ignored.
type CheckpointBackbone struct {
	Path string
}

func (p CheckpointBackbone) Backbone(cfg ResNetConfig) (*ResNet, error) {
	r, err := NewResNet(cfg, nil)
	if err != nil {
		return nil, err
	}

	sd, err := checkpoint.Read(p.Path)
	if err != nil {
		return nil, err
	}
	for _, name := range sd.Names() {
		if strings.HasPrefix(name, backbonePrefix+".") {
			sd = sd.Sub(backbonePrefix)
			break
		}
	}

	if err := model.Load(r, sd); err != nil {
		return nil, fmt.Errorf("backbone %s: %w", p.Path, err)
	}
	return r, nil
}
