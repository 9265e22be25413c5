// spec.go - LayerSpec-Konfiguration fuer Faltungs-Stufen
//
// Eine LayerSpec beschreibt eine Stufe vollstaendig (Kanaele, Kernel, Stride,
// Padding, Ein- und Zielgroesse). Stacks werden aus geordneten Listen dieser
// Records gebaut, damit der Groessen-Fahrplan selbst testbar ist.
package nn

import (
	"errors"
	"fmt"

	"github.com/7blacky7/gmncount/ml"
)

// ErrConfig is the root of every construction-time configuration failure.
var ErrConfig = errors.New("nn: invalid layer configuration")

// ConfigError reports why a layer or stack could not be constructed.
type ConfigError struct {
	Layer  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("nn: %s: %s", e.Layer, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

func configErr(layer, format string, args ...any) error {
	return &ConfigError{Layer: layer, Reason: fmt.Sprintf(format, args...)}
}

// Size is a spatial extent.
type Size struct {
	Height, Width int
}

// Square returns an n×n size.
func Square(n int) Size {
	return Size{Height: n, Width: n}
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Height, s.Width)
}

// ConvSpec configures a strided convolution stage.
type ConvSpec struct {
	InChannels  int
	OutChannels int
	Kernel      int
	Stride      int
	Padding     int

	// Input is the spatial size the stage geometry was derived for.
	Input Size

	// Norm and Activation append BatchNorm2d and ReLU after the convolution.
	Norm       bool
	Activation bool
}

func (s ConvSpec) withDefaults() ConvSpec {
	if s.Stride == 0 {
		s.Stride = 1
	}
	return s
}

// Output returns the spatial size the stage produces for its declared input.
func (s ConvSpec) Output() Size {
	s = s.withDefaults()
	return Size{
		Height: ml.ConvOutputSize(s.Input.Height, s.Kernel, s.Stride, s.Padding),
		Width:  ml.ConvOutputSize(s.Input.Width, s.Kernel, s.Stride, s.Padding),
	}
}

// Validate checks that the stage is constructible.
func (s ConvSpec) Validate() error {
	s = s.withDefaults()
	switch {
	case s.InChannels <= 0 || s.OutChannels <= 0:
		return configErr("conv2d", "channels must be positive, got %d -> %d", s.InChannels, s.OutChannels)
	case s.Kernel <= 0:
		return configErr("conv2d", "kernel must be positive, got %d", s.Kernel)
	case s.Stride < 0:
		return configErr("conv2d", "stride must be positive, got %d", s.Stride)
	case s.Padding < 0:
		return configErr("conv2d", "padding must not be negative, got %d", s.Padding)
	}

	if s.Input != (Size{}) {
		if out := s.Output(); out.Height <= 0 || out.Width <= 0 {
			return configErr("conv2d", "kernel %d does not fit input %s", s.Kernel, s.Input)
		}
	}

	return nil
}

// TransposedSpec configures a size-exact transposed convolution stage. The
// output padding is derived from Input and Target, not configured.
type TransposedSpec struct {
	InChannels  int
	OutChannels int
	Kernel      int
	Stride      int
	Padding     int

	Input  Size
	Target Size

	Norm       bool
	Activation bool
}

func (s TransposedSpec) withDefaults() TransposedSpec {
	if s.Stride == 0 {
		s.Stride = 1
	}
	return s
}

// Natural returns the output size of the transposed convolution without any
// output padding: (in-1)*stride - 2*padding + kernel.
func (s TransposedSpec) Natural() Size {
	s = s.withDefaults()
	return Size{
		Height: ml.ConvTransposeOutputSize(s.Input.Height, s.Kernel, s.Stride, s.Padding),
		Width:  ml.ConvTransposeOutputSize(s.Input.Width, s.Kernel, s.Stride, s.Padding),
	}
}

// OutputPadding returns the trailing-edge padding per axis that lands the
// output exactly on Target. Each value must lie in [0, stride).
func (s TransposedSpec) OutputPadding() (Size, error) {
	s = s.withDefaults()
	natural := s.Natural()
	pad := Size{
		Height: s.Target.Height - natural.Height,
		Width:  s.Target.Width - natural.Width,
	}

	for _, p := range []int{pad.Height, pad.Width} {
		if p < 0 || p >= s.Stride {
			return Size{}, configErr("conv_transpose2d",
				"target %s unreachable from input %s with kernel %d, stride %d, padding %d (natural output %s, output padding %s must lie in [0, %d))",
				s.Target, s.Input, s.Kernel, s.Stride, s.Padding, natural, pad, s.Stride)
		}
	}

	return pad, nil
}

// Validate checks that the stage is constructible and its target reachable.
func (s TransposedSpec) Validate() error {
	s = s.withDefaults()
	switch {
	case s.InChannels <= 0 || s.OutChannels <= 0:
		return configErr("conv_transpose2d", "channels must be positive, got %d -> %d", s.InChannels, s.OutChannels)
	case s.Kernel <= 0:
		return configErr("conv_transpose2d", "kernel must be positive, got %d", s.Kernel)
	case s.Stride < 0:
		return configErr("conv_transpose2d", "stride must be positive, got %d", s.Stride)
	case s.Padding < 0:
		return configErr("conv_transpose2d", "padding must not be negative, got %d", s.Padding)
	case s.Input.Height <= 0 || s.Input.Width <= 0:
		return configErr("conv_transpose2d", "input size must be positive, got %s", s.Input)
	case s.Target.Height <= 0 || s.Target.Width <= 0:
		return configErr("conv_transpose2d", "target size must be positive, got %s", s.Target)
	}

	_, err := s.OutputPadding()
	return err
}

// ValidateConvChain checks every stage and that channels and sizes chain from
// one stage into the next.
func ValidateConvChain(specs []ConvSpec) error {
	for i, s := range specs {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("stage %d: %w", i, err)
		}
		if i == 0 {
			continue
		}

		prev := specs[i-1]
		if prev.OutChannels != s.InChannels {
			return fmt.Errorf("stage %d: %w", i, configErr("conv2d", "expects %d input channels, previous stage produces %d", s.InChannels, prev.OutChannels))
		}
		if s.Input != (Size{}) && prev.Input != (Size{}) && prev.Output() != s.Input {
			return fmt.Errorf("stage %d: %w", i, configErr("conv2d", "expects input %s, previous stage produces %s", s.Input, prev.Output()))
		}
	}
	return nil
}

// ValidateTransposedChain is the transposed counterpart of ValidateConvChain:
// stage i's target must be stage i+1's input.
func ValidateTransposedChain(specs []TransposedSpec) error {
	for i, s := range specs {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("stage %d: %w", i, err)
		}
		if i == 0 {
			continue
		}

		prev := specs[i-1]
		if prev.OutChannels != s.InChannels {
			return fmt.Errorf("stage %d: %w", i, configErr("conv_transpose2d", "expects %d input channels, previous stage produces %d", s.InChannels, prev.OutChannels))
		}
		if prev.Target != s.Input {
			return fmt.Errorf("stage %d: %w", i, configErr("conv_transpose2d", "expects input %s, previous stage targets %s", s.Input, prev.Target))
		}
	}
	return nil
}
