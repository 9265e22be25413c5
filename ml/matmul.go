// matmul.go - Matrixmultiplikation ueber gonum blas32
package ml

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

func general(rows, cols int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

// Linear computes x·Wᵀ + b for x of shape [N, in], weight [out, in] and an
// optional bias [out].
func Linear(x, weight, bias *Tensor) (*Tensor, error) {
	if err := x.expectRank("linear", 2); err != nil {
		return nil, err
	}
	if err := weight.expectRank("linear", 2); err != nil {
		return nil, err
	}

	n, in := x.shape[0], x.shape[1]
	out := weight.shape[0]
	if weight.shape[1] != in {
		return nil, shapeErr("linear", []int{n, weight.shape[1]}, x.shape, "input features differ from weight")
	}
	if bias != nil && (bias.Rank() != 1 || bias.shape[0] != out) {
		return nil, shapeErr("linear", []int{out}, bias.shape, "bias length differs from output features")
	}

	y := Zeros(n, out)
	if bias != nil {
		for i := range n {
			copy(y.data[i*out:(i+1)*out], bias.data)
		}
	}

	beta := float32(0)
	if bias != nil {
		beta = 1
	}
	blas32.Gemm(blas.NoTrans, blas.Trans, 1, general(n, in, x.data), general(out, in, weight.data), beta, general(n, out, y.data))
	return y, nil
}

// MatMul multiplies two rank-2 tensors.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if err := a.expectRank("matmul", 2); err != nil {
		return nil, err
	}
	if err := b.expectRank("matmul", 2); err != nil {
		return nil, err
	}
	if a.shape[1] != b.shape[0] {
		return nil, shapeErr("matmul", []int{a.shape[1], b.shape[1]}, b.shape, "inner dimensions differ")
	}

	m, k, n := a.shape[0], a.shape[1], b.shape[1]
	c := Zeros(m, n)
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, general(m, k, a.data), general(k, n, b.data), 0, general(m, n, c.data))
	return c, nil
}
