package nn

import "github.com/7blacky7/gmncount/ml"

// Layer is a single inference step.
type Layer interface {
	Forward(x *ml.Tensor) (*ml.Tensor, error)
}

// Sequential runs layers in order. Indices match torch.nn.Sequential so that
// checkpoint keys like "encoder.3.running_mean" resolve positionally.
type Sequential []Layer

func (s Sequential) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	var err error
	for _, l := range s {
		if x, err = l.Forward(x); err != nil {
			return nil, err
		}
	}
	return x, nil
}
