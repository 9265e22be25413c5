package nn

import "github.com/7blacky7/gmncount/ml"

type MaxPool2D struct {
	Kernel, Stride, Padding int
}

func (m *MaxPool2D) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	return ml.MaxPool2D(x, m.Kernel, m.Stride, m.Padding)
}

type AdaptiveAvgPool2D struct {
	Output Size
}

func (m *AdaptiveAvgPool2D) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	return ml.AdaptiveAvgPool2D(x, m.Output.Height, m.Output.Width)
}
