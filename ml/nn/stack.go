package nn

import (
	"golang.org/x/exp/rand"
)

// NewConvStack builds the torch.nn.Sequential equivalent of specs. Each stage
// contributes a convolution, then BatchNorm if Norm is set, then ReLU if
// Activation is set.
func NewConvStack(specs []ConvSpec, rng *rand.Rand) (Sequential, error) {
	if err := ValidateConvChain(specs); err != nil {
		return nil, err
	}

	var s Sequential
	for _, spec := range specs {
		conv, err := NewConv2D(spec, true, rng)
		if err != nil {
			return nil, err
		}

		s = append(s, conv)
		if spec.Norm {
			s = append(s, NewBatchNorm(spec.OutChannels))
		}
		if spec.Activation {
			s = append(s, ReLU{})
		}
	}
	return s, nil
}

// NewTransposedStack is the transposed counterpart of NewConvStack.
// Construction fails as soon as any stage target is unreachable.
func NewTransposedStack(specs []TransposedSpec, rng *rand.Rand) (Sequential, error) {
	if err := ValidateTransposedChain(specs); err != nil {
		return nil, err
	}

	var s Sequential
	for _, spec := range specs {
		conv, err := NewConvTranspose2D(spec, rng)
		if err != nil {
			return nil, err
		}

		s = append(s, conv)
		if spec.Norm {
			s = append(s, NewBatchNorm(spec.OutChannels))
		}
		if spec.Activation {
			s = append(s, ReLU{})
		}
	}
	return s, nil
}
