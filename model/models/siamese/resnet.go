package siamese

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/ml/nn"
)

// ResNetConfig describes a bottleneck ResNet in the torchvision layout.
type ResNetConfig struct {
	// Blocks per stage (layer1..layer4).
	Blocks [4]int
	// Width of the first stage; later stages double it.
	Width      int
	InChannels int
}

// Bottleneck blocks expand their inner width by this factor.
const expansion = 4

// ResNet50Config matches torchvision.models.resnet50.
func ResNet50Config() ResNetConfig {
	return ResNetConfig{Blocks: [4]int{3, 4, 6, 3}, Width: 64, InChannels: 3}
}

// Features is the length of the pooled feature vector.
func (c ResNetConfig) Features() int {
	return c.Width * 8 * expansion
}

func (c ResNetConfig) validate() error {
	if c.Width <= 0 || c.InChannels <= 0 {
		return &nn.ConfigError{Layer: "resnet", Reason: fmt.Sprintf("width %d and input channels %d must be positive", c.Width, c.InChannels)}
	}
	for i, n := range c.Blocks {
		if n <= 0 {
			return &nn.ConfigError{Layer: "resnet", Reason: fmt.Sprintf("layer%d needs at least one block", i+1)}
		}
	}
	return nil
}

type Bottleneck struct {
	Conv1 *nn.Conv2D    `torch:"conv1"`
	BN1   *nn.BatchNorm `torch:"bn1"`
	Conv2 *nn.Conv2D    `torch:"conv2"`
	BN2   *nn.BatchNorm `torch:"bn2"`
	Conv3 *nn.Conv2D    `torch:"conv3"`
	BN3   *nn.BatchNorm `torch:"bn3"`

	// Downsample projects the identity when stride or width change.
	Downsample nn.Sequential `torch:"downsample"`
}

func newBottleneck(in, width, stride int, rng *rand.Rand) (*Bottleneck, error) {
	out := width * expansion
	specs := []nn.ConvSpec{
		{InChannels: in, OutChannels: width, Kernel: 1},
		{InChannels: width, OutChannels: width, Kernel: 3, Stride: stride, Padding: 1},
		{InChannels: width, OutChannels: out, Kernel: 1},
	}

	convs := make([]*nn.Conv2D, len(specs))
	for i, spec := range specs {
		conv, err := nn.NewConv2D(spec, false, rng)
		if err != nil {
			return nil, err
		}
		convs[i] = conv
	}

	b := &Bottleneck{
		Conv1: convs[0], BN1: nn.NewBatchNorm(width),
		Conv2: convs[1], BN2: nn.NewBatchNorm(width),
		Conv3: convs[2], BN3: nn.NewBatchNorm(out),
	}

	if stride != 1 || in != out {
		proj, err := nn.NewConv2D(nn.ConvSpec{InChannels: in, OutChannels: out, Kernel: 1, Stride: stride}, false, rng)
		if err != nil {
			return nil, err
		}
		b.Downsample = nn.Sequential{proj, nn.NewBatchNorm(out)}
	}
	return b, nil
}

func (b *Bottleneck) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	out, err := nn.Sequential{b.Conv1, b.BN1, nn.ReLU{}, b.Conv2, b.BN2, nn.ReLU{}, b.Conv3, b.BN3}.Forward(x)
	if err != nil {
		return nil, err
	}

	identity := x
	if b.Downsample != nil {
		if identity, err = b.Downsample.Forward(x); err != nil {
			return nil, err
		}
	}

	if out, err = out.Add(identity); err != nil {
		return nil, err
	}
	return out.ReLU(), nil
}

// ResNet is the backbone shared by both branches of the comparator.
type ResNet struct {
	Conv1  *nn.Conv2D    `torch:"conv1"`
	BN1    *nn.BatchNorm `torch:"bn1"`
	Layer1 []*Bottleneck `torch:"layer1"`
	Layer2 []*Bottleneck `torch:"layer2"`
	Layer3 []*Bottleneck `torch:"layer3"`
	Layer4 []*Bottleneck `torch:"layer4"`

	// FC replaces the ImageNet classifier. A backbone without head ends at
	// the pooled features.
	FC nn.Layer `torch:"fc"`

	config  ResNetConfig
	maxPool *nn.MaxPool2D
	avgPool *nn.AdaptiveAvgPool2D
}

// NewResNet builds a randomly initialised backbone without head.
func NewResNet(cfg ResNetConfig, rng *rand.Rand) (*ResNet, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	stem, err := nn.NewConv2D(nn.ConvSpec{InChannels: cfg.InChannels, OutChannels: cfg.Width, Kernel: 7, Stride: 2, Padding: 3}, false, rng)
	if err != nil {
		return nil, err
	}

	r := &ResNet{
		Conv1:   stem,
		BN1:     nn.NewBatchNorm(cfg.Width),
		config:  cfg,
		maxPool: &nn.MaxPool2D{Kernel: 3, Stride: 2, Padding: 1},
		avgPool: &nn.AdaptiveAvgPool2D{Output: nn.Square(1)},
	}

	in := cfg.Width
	stages := []*[]*Bottleneck{&r.Layer1, &r.Layer2, &r.Layer3, &r.Layer4}
	for i, stage := range stages {
		width := cfg.Width << i
		stride := 2
		if i == 0 {
			stride = 1
		}

		for j := range cfg.Blocks[i] {
			if j > 0 {
				stride = 1
			}
			block, err := newBottleneck(in, width, stride, rng)
			if err != nil {
				return nil, fmt.Errorf("layer%d.%d: %w", i+1, j, err)
			}
			*stage = append(*stage, block)
			in = width * expansion
		}
	}
	return r, nil
}

func (r *ResNet) Name() string { return "ResNet" }

func (r *ResNet) Config() ResNetConfig { return r.config }

// IgnoredKeys skips the classifier of ImageNet checkpoints while the
// backbone has no head of its own.
func (r *ResNet) IgnoredKeys() []string {
	if r.FC == nil {
		return []string{"fc."}
	}
	return nil
}

// Features runs the backbone up to the pooled feature vector [N, Features].
func (r *ResNet) Features(x *ml.Tensor) (*ml.Tensor, error) {
	x, err := nn.Sequential{r.Conv1, r.BN1, nn.ReLU{}, r.maxPool}.Forward(x)
	if err != nil {
		return nil, err
	}

	for _, stage := range [][]*Bottleneck{r.Layer1, r.Layer2, r.Layer3, r.Layer4} {
		for _, block := range stage {
			if x, err = block.Forward(x); err != nil {
				return nil, err
			}
		}
	}

	if x, err = r.avgPool.Forward(x); err != nil {
		return nil, err
	}
	return x.Flatten()
}

func (r *ResNet) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	x, err := r.Features(x)
	if err != nil {
		return nil, err
	}
	if r.FC == nil {
		return x, nil
	}
	return r.FC.Forward(x)
}
