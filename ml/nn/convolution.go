package nn

import (
	"golang.org/x/exp/rand"

	"github.com/7blacky7/gmncount/ml"
)

type Conv2D struct {
	Weight *ml.Tensor `torch:"weight"`
	Bias   *ml.Tensor `torch:"bias,optional"`

	spec   ConvSpec
	params ml.Conv2DParams
}

// NewConv2D allocates a convolution for spec. Torchvision backbones omit the
// bias, which is what withBias=false is for.
func NewConv2D(spec ConvSpec, withBias bool, rng *rand.Rand) (*Conv2D, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec = spec.withDefaults()
	rng = newRand(rng)

	fanIn := spec.InChannels * spec.Kernel * spec.Kernel
	m := &Conv2D{
		Weight: uniform(rng, fanIn, spec.OutChannels, spec.InChannels, spec.Kernel, spec.Kernel),
		spec:   spec,
		params: ml.Conv2DParams{Stride: spec.Stride, Padding: spec.Padding},
	}
	if withBias {
		m.Bias = uniform(rng, fanIn, spec.OutChannels)
	}
	return m, nil
}

// Spec returns the configuration the layer was built from.
func (m *Conv2D) Spec() ConvSpec {
	return m.spec
}

// Forward rejects inputs whose spatial size differs from a declared
// ConvSpec.Input. Without a declared size any input is accepted.
func (m *Conv2D) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	in := m.spec.Input
	if in != (Size{}) && x.Rank() == 4 && (x.Dim(2) != in.Height || x.Dim(3) != in.Width) {
		return nil, &ml.ShapeError{
			Op:   "conv2d",
			Want: []int{x.Dim(0), m.spec.InChannels, in.Height, in.Width},
			Got:  x.Shape(),
			Msg:  "input size differs from the size the stage was declared for",
		}
	}
	return ml.Conv2D(x, m.Weight, m.Bias, m.params)
}

// ConvTranspose2D is a transposed convolution that lands exactly on the
// target size of its TransposedSpec. The output padding is derived once at
// construction.
type ConvTranspose2D struct {
	Weight *ml.Tensor `torch:"weight"`
	Bias   *ml.Tensor `torch:"bias"`

	spec   TransposedSpec
	params ml.ConvTranspose2DParams
}

// NewConvTranspose2D fails with a *ConfigError when the target size cannot
// be reached from the declared input size.
func NewConvTranspose2D(spec TransposedSpec, rng *rand.Rand) (*ConvTranspose2D, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec = spec.withDefaults()
	pad, err := spec.OutputPadding()
	if err != nil {
		return nil, err
	}
	rng = newRand(rng)

	// torch computes fan-in from dim 1 of the [in, out, kh, kw] weight
	fanIn := spec.OutChannels * spec.Kernel * spec.Kernel
	return &ConvTranspose2D{
		Weight: uniform(rng, fanIn, spec.InChannels, spec.OutChannels, spec.Kernel, spec.Kernel),
		Bias:   uniform(rng, fanIn, spec.OutChannels),
		spec:   spec,
		params: ml.ConvTranspose2DParams{
			Stride:         spec.Stride,
			Padding:        spec.Padding,
			OutputPaddingH: pad.Height,
			OutputPaddingW: pad.Width,
		},
	}, nil
}

// Spec returns the configuration the layer was built from.
func (m *ConvTranspose2D) Spec() TransposedSpec {
	return m.spec
}

// OutputPadding returns the derived output padding.
func (m *ConvTranspose2D) OutputPadding() Size {
	return Size{Height: m.params.OutputPaddingH, Width: m.params.OutputPaddingW}
}

func (m *ConvTranspose2D) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	if x.Rank() == 4 && (x.Dim(2) != m.spec.Input.Height || x.Dim(3) != m.spec.Input.Width) {
		return nil, &ml.ShapeError{
			Op:   "conv_transpose2d",
			Want: []int{x.Dim(0), m.spec.InChannels, m.spec.Input.Height, m.spec.Input.Width},
			Got:  x.Shape(),
			Msg:  "input size differs from the size the output padding was derived for",
		}
	}
	return ml.ConvTranspose2D(x, m.Weight, m.Bias, m.params)
}
