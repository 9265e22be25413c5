package nn

import "github.com/7blacky7/gmncount/ml"

// BatchNorm covers BatchNorm1d and BatchNorm2d in inference mode.
type BatchNorm struct {
	Weight            *ml.Tensor `torch:"weight"`
	Bias              *ml.Tensor `torch:"bias"`
	RunningMean       *ml.Tensor `torch:"running_mean"`
	RunningVar        *ml.Tensor `torch:"running_var"`
	NumBatchesTracked *ml.Tensor `torch:"num_batches_tracked,optional,i64"`

	Eps float32
}

// NewBatchNorm returns a freshly initialised layer: unit scale, zero shift,
// zero mean and unit variance.
func NewBatchNorm(features int) *BatchNorm {
	return &BatchNorm{
		Weight:            ml.Full(1, features),
		Bias:              ml.Zeros(features),
		RunningMean:       ml.Zeros(features),
		RunningVar:        ml.Full(1, features),
		NumBatchesTracked: ml.Zeros(),
		Eps:               ml.BatchNormEpsilon,
	}
}

func (m *BatchNorm) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	return ml.BatchNorm(x, m.RunningMean, m.RunningVar, m.Weight, m.Bias, m.Eps)
}
