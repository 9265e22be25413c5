// ops.go - Elementweise Operationen, Aktivierungen und Konkatenation
package ml

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

func (t *Tensor) sameShape(op string, o *Tensor) error {
	if !slices.Equal(t.shape, o.shape) {
		return shapeErr(op, t.shape, o.shape, "operands differ")
	}
	return nil
}

func (t *Tensor) zip(op string, o *Tensor, fn func(a, b float32) float32) (*Tensor, error) {
	if err := t.sameShape(op, o); err != nil {
		return nil, err
	}
	out := &Tensor{shape: slices.Clone(t.shape), data: make([]float32, len(t.data))}
	for i := range t.data {
		out.data[i] = fn(t.data[i], o.data[i])
	}
	return out, nil
}

func (t *Tensor) apply(fn func(float32) float32) *Tensor {
	out := &Tensor{shape: slices.Clone(t.shape), data: make([]float32, len(t.data))}
	for i, v := range t.data {
		out.data[i] = fn(v)
	}
	return out
}

// Add returns t + o.
func (t *Tensor) Add(o *Tensor) (*Tensor, error) {
	return t.zip("add", o, func(a, b float32) float32 { return a + b })
}

// Sub returns t - o.
func (t *Tensor) Sub(o *Tensor) (*Tensor, error) {
	return t.zip("sub", o, func(a, b float32) float32 { return a - b })
}

// Mul returns the element-wise product.
func (t *Tensor) Mul(o *Tensor) (*Tensor, error) {
	return t.zip("mul", o, func(a, b float32) float32 { return a * b })
}

// AbsDiff returns |t - o|. It is symmetric in its operands.
func (t *Tensor) AbsDiff(o *Tensor) (*Tensor, error) {
	return t.zip("absdiff", o, func(a, b float32) float32 {
		return float32(math.Abs(float64(a - b)))
	})
}

// Scale multiplies every element by s.
func (t *Tensor) Scale(s float32) *Tensor {
	return t.apply(func(v float32) float32 { return v * s })
}

// Exp applies e^x element-wise.
func (t *Tensor) Exp() *Tensor {
	return t.apply(func(v float32) float32 { return float32(math.Exp(float64(v))) })
}

// ReLU applies max(0, x).
func (t *Tensor) ReLU() *Tensor {
	return t.apply(func(v float32) float32 { return max(v, 0) })
}

// Tanh applies the hyperbolic tangent, bounding values to [-1, 1].
func (t *Tensor) Tanh() *Tensor {
	return t.apply(func(v float32) float32 { return float32(math.Tanh(float64(v))) })
}

// Concat joins tensors along axis. All other dimensions must agree.
func Concat(axis int, ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, shapeErr("concat", nil, nil, "no operands")
	}

	first := ts[0]
	if axis < 0 || axis >= len(first.shape) {
		return nil, shapeErr("concat", nil, first.shape, "axis %d out of range", axis)
	}

	shape := slices.Clone(first.shape)
	shape[axis] = 0
	for _, t := range ts {
		if len(t.shape) != len(first.shape) {
			return nil, shapeErr("concat", first.shape, t.shape, "rank differs")
		}
		for i := range t.shape {
			if i != axis && t.shape[i] != first.shape[i] {
				return nil, shapeErr("concat", first.shape, t.shape, "dimension %d differs", i)
			}
		}
		shape[axis] += t.shape[axis]
	}

	outer := mul(first.shape[:axis]...)
	out := &Tensor{shape: shape, data: make([]float32, 0, mul(shape...))}
	for o := range outer {
		for _, t := range ts {
			chunk := mul(t.shape[axis:]...)
			out.data = append(out.data, t.data[o*chunk:(o+1)*chunk]...)
		}
	}

	return out, nil
}

// SelectChannel extracts channel c of an NCHW tensor as an N×1×H×W tensor.
func (t *Tensor) SelectChannel(c int) (*Tensor, error) {
	if err := t.expectRank("select_channel", 4); err != nil {
		return nil, err
	}
	n, ch, h, w := t.shape[0], t.shape[1], t.shape[2], t.shape[3]
	if c < 0 || c >= ch {
		return nil, shapeErr("select_channel", []int{n, c + 1, h, w}, t.shape, "channel %d out of range", c)
	}

	plane := h * w
	out := Zeros(n, 1, h, w)
	for b := range n {
		copy(out.data[b*plane:(b+1)*plane], t.data[(b*ch+c)*plane:(b*ch+c+1)*plane])
	}
	return out, nil
}

// Stats returns the mean and sample variance of all elements.
func (t *Tensor) Stats() (mean, variance float64) {
	xs := make([]float64, len(t.data))
	for i, v := range t.data {
		xs[i] = float64(v)
	}
	return stat.MeanVariance(xs, nil)
}

// MeanSquaredError returns mean((t - o)^2).
func (t *Tensor) MeanSquaredError(o *Tensor) (float64, error) {
	if err := t.sameShape("mse", o); err != nil {
		return 0, err
	}
	sq := make([]float64, len(t.data))
	for i := range t.data {
		d := float64(t.data[i] - o.data[i])
		sq[i] = d * d
	}
	return stat.Mean(sq, nil), nil
}
