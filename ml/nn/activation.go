package nn

import "github.com/7blacky7/gmncount/ml"

type ReLU struct{}

func (ReLU) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	return x.ReLU(), nil
}

type Tanh struct{}

func (Tanh) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	return x.Tanh(), nil
}

// Dropout is the identity at inference time.
type Dropout struct {
	P float32
}

func (Dropout) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	return x, nil
}
