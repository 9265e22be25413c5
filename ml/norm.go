// norm.go - Batch-Normalisierung im Inferenz-Modus
package ml

import (
	"math"
)

// BatchNormEpsilon matches the torch default.
const BatchNormEpsilon = 1e-5

// BatchNorm normalises x per channel with running statistics:
//
//	y = (x - mean) / sqrt(var + eps) * weight + bias
//
// x may be [N, C] (BatchNorm1d) or [N, C, H, W] (BatchNorm2d). Weight and bias
// may be nil for a non-affine normalisation.
func BatchNorm(x, mean, variance, weight, bias *Tensor, eps float32) (*Tensor, error) {
	if x.Rank() != 2 && x.Rank() != 4 {
		return nil, shapeErr("batch_norm", []int{-1, -1, -1, -1}, x.shape, "expected rank 2 or 4")
	}

	c := x.shape[1]
	if mean == nil || variance == nil {
		return nil, shapeErr("batch_norm", []int{c}, nil, "missing running statistics")
	}
	for _, p := range []*Tensor{mean, variance, weight, bias} {
		if p != nil && (p.Rank() != 1 || p.shape[0] != c) {
			return nil, shapeErr("batch_norm", []int{c}, p.shape, "parameter length differs from channels")
		}
	}

	scale := make([]float32, c)
	shift := make([]float32, c)
	for i := range c {
		s := float32(1 / math.Sqrt(float64(variance.data[i]+eps)))
		if weight != nil {
			s *= weight.data[i]
		}
		scale[i] = s
		shift[i] = -mean.data[i] * s
		if bias != nil {
			shift[i] += bias.data[i]
		}
	}

	spatial := 1
	if x.Rank() == 4 {
		spatial = x.shape[2] * x.shape[3]
	}

	out := x.Clone()
	for b := range x.shape[0] {
		for i := range c {
			plane := out.data[(b*c+i)*spatial : (b*c+i+1)*spatial]
			for j := range plane {
				plane[j] = plane[j]*scale[i] + shift[i]
			}
		}
	}

	return out, nil
}
