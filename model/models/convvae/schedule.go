package convvae

import (
	"github.com/7blacky7/gmncount/ml/nn"
)

const (
	// InputSize is the spatial size of the template images the network is
	// built for.
	InputSize = 63

	// Features is the channel width of the 1x1 map between the convolution
	// stacks and the linear heads.
	Features = 1024
)

// EncoderSchedule returns the convolution stages for images with the given
// channel count: 63 -> 30 -> 14 -> 6 -> 3 -> 1 -> 1.
func EncoderSchedule(channels int) []nn.ConvSpec {
	return []nn.ConvSpec{
		{InChannels: channels, OutChannels: 32, Kernel: 7, Stride: 2, Padding: 1, Input: nn.Square(63), Activation: true},
		{InChannels: 32, OutChannels: 64, Kernel: 5, Stride: 2, Padding: 1, Input: nn.Square(30), Norm: true, Activation: true},
		{InChannels: 64, OutChannels: 128, Kernel: 5, Stride: 2, Padding: 1, Input: nn.Square(14), Norm: true, Activation: true},
		{InChannels: 128, OutChannels: 256, Kernel: 3, Stride: 2, Padding: 1, Input: nn.Square(6), Norm: true, Activation: true},
		{InChannels: 256, OutChannels: 512, Kernel: 3, Stride: 2, Input: nn.Square(3), Norm: true, Activation: true},
		{InChannels: 512, OutChannels: Features, Kernel: 1, Input: nn.Square(1), Norm: true, Activation: true},
	}
}

// DecoderSchedule returns the size-exact transposed stages
// 1 -> 1 -> 3 -> 6 -> 14 -> 30 -> 63. The last stage has neither
// normalisation nor activation; the decoder applies tanh afterwards.
func DecoderSchedule(channels int) []nn.TransposedSpec {
	return []nn.TransposedSpec{
		{InChannels: Features, OutChannels: 512, Kernel: 1, Input: nn.Square(1), Target: nn.Square(1), Norm: true, Activation: true},
		{InChannels: 512, OutChannels: 256, Kernel: 3, Stride: 2, Input: nn.Square(1), Target: nn.Square(3), Norm: true, Activation: true},
		{InChannels: 256, OutChannels: 128, Kernel: 3, Stride: 2, Padding: 1, Input: nn.Square(3), Target: nn.Square(6), Norm: true, Activation: true},
		{InChannels: 128, OutChannels: 64, Kernel: 5, Stride: 2, Padding: 1, Input: nn.Square(6), Target: nn.Square(14), Norm: true, Activation: true},
		{InChannels: 64, OutChannels: 32, Kernel: 5, Stride: 2, Padding: 1, Input: nn.Square(14), Target: nn.Square(30), Norm: true, Activation: true},
		{InChannels: 32, OutChannels: channels, Kernel: 7, Stride: 2, Padding: 1, Input: nn.Square(30), Target: nn.Square(InputSize)},
	}
}

// ValidateSchedule checks that both schedules chain and meet at the 1x1
// feature map.
func ValidateSchedule(enc []nn.ConvSpec, dec []nn.TransposedSpec) error {
	if err := nn.ValidateConvChain(enc); err != nil {
		return err
	}
	if err := nn.ValidateTransposedChain(dec); err != nil {
		return err
	}
	if len(enc) == 0 || len(dec) == 0 {
		return &nn.ConfigError{Layer: "schedule", Reason: "empty schedule"}
	}

	last, first := enc[len(enc)-1], dec[0]
	if last.OutChannels != first.InChannels || last.Output() != first.Input {
		return &nn.ConfigError{Layer: "schedule", Reason: "encoder output does not feed the decoder input"}
	}
	if enc[0].InChannels != dec[len(dec)-1].OutChannels || enc[0].Input != dec[len(dec)-1].Target {
		return &nn.ConfigError{Layer: "schedule", Reason: "decoder output differs from encoder input"}
	}
	return nil
}
