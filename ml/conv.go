// conv.go - 2D-Faltung und transponierte 2D-Faltung (NCHW)
// Beide Operationen laufen ueber eine einzige GEMM pro Batch-Element:
// Conv2D mit im2col, ConvTranspose2D mit col2im.
package ml

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Conv2DParams holds the geometry of a convolution. Height and width share
// stride and padding.
type Conv2DParams struct {
	Stride  int
	Padding int
}

// ConvOutputSize is the standard convolution output size formula.
func ConvOutputSize(in, kernel, stride, padding int) int {
	n := in + 2*padding - kernel
	if n < 0 {
		return 0
	}
	return n/stride + 1
}

// ConvTransposeOutputSize is the transposed convolution output size before
// output padding is applied.
func ConvTransposeOutputSize(in, kernel, stride, padding int) int {
	return (in-1)*stride - 2*padding + kernel
}

// Conv2D convolves x [N, Cin, H, W] with weight [Cout, Cin, kH, kW] and adds
// the optional bias [Cout].
func Conv2D(x, weight, bias *Tensor, p Conv2DParams) (*Tensor, error) {
	if err := x.expectRank("conv2d", 4); err != nil {
		return nil, err
	}
	if err := weight.expectRank("conv2d", 4); err != nil {
		return nil, err
	}

	n, cin, h, w := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	cout, kh, kw := weight.shape[0], weight.shape[2], weight.shape[3]
	if weight.shape[1] != cin {
		return nil, shapeErr("conv2d", []int{n, weight.shape[1], h, w}, x.shape, "input channels differ from weight")
	}
	if bias != nil && (bias.Rank() != 1 || bias.shape[0] != cout) {
		return nil, shapeErr("conv2d", []int{cout}, bias.shape, "bias length differs from output channels")
	}

	stride := max(p.Stride, 1)
	oh := ConvOutputSize(h, kh, stride, p.Padding)
	ow := ConvOutputSize(w, kw, stride, p.Padding)
	if oh <= 0 || ow <= 0 {
		return nil, shapeErr("conv2d", []int{n, cin, kh, kw}, x.shape, "input smaller than kernel")
	}

	k := cin * kh * kw
	spatial := oh * ow
	cols := make([]float32, k*spatial)
	out := Zeros(n, cout, oh, ow)

	for b := range n {
		im2col(x.data[b*cin*h*w:(b+1)*cin*h*w], cols, cin, h, w, kh, kw, oh, ow, stride, p.Padding)

		dst := out.data[b*cout*spatial : (b+1)*cout*spatial]
		beta := float32(0)
		if bias != nil {
			for c := range cout {
				fill(dst[c*spatial:(c+1)*spatial], bias.data[c])
			}
			beta = 1
		}

		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			general(cout, k, weight.data),
			general(k, spatial, cols),
			beta, general(cout, spatial, dst))
	}

	return out, nil
}

func im2col(src, cols []float32, cin, h, w, kh, kw, oh, ow, stride, pad int) {
	spatial := oh * ow
	for c := range cin {
		for i := range kh {
			for j := range kw {
				row := cols[((c*kh+i)*kw+j)*spatial:]
				for y := range oh {
					iy := y*stride - pad + i
					for x := range ow {
						ix := x*stride - pad + j
						if iy < 0 || iy >= h || ix < 0 || ix >= w {
							row[y*ow+x] = 0
						} else {
							row[y*ow+x] = src[(c*h+iy)*w+ix]
						}
					}
				}
			}
		}
	}
}

// ConvTranspose2DParams extends the convolution geometry with the extra
// trailing-edge output padding of each spatial axis.
type ConvTranspose2DParams struct {
	Stride         int
	Padding        int
	OutputPaddingH int
	OutputPaddingW int
}

// ConvTranspose2D applies a transposed convolution to x [N, Cin, H, W] with
// weight [Cin, Cout, kH, kW] and optional bias [Cout]. The output spatial size
// is (in-1)*stride - 2*padding + kernel + outputPadding.
func ConvTranspose2D(x, weight, bias *Tensor, p ConvTranspose2DParams) (*Tensor, error) {
	if err := x.expectRank("conv_transpose2d", 4); err != nil {
		return nil, err
	}
	if err := weight.expectRank("conv_transpose2d", 4); err != nil {
		return nil, err
	}

	n, cin, h, w := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	cout, kh, kw := weight.shape[1], weight.shape[2], weight.shape[3]
	if weight.shape[0] != cin {
		return nil, shapeErr("conv_transpose2d", []int{n, weight.shape[0], h, w}, x.shape, "input channels differ from weight")
	}
	if bias != nil && (bias.Rank() != 1 || bias.shape[0] != cout) {
		return nil, shapeErr("conv_transpose2d", []int{cout}, bias.shape, "bias length differs from output channels")
	}

	stride := max(p.Stride, 1)
	oh := ConvTransposeOutputSize(h, kh, stride, p.Padding) + p.OutputPaddingH
	ow := ConvTransposeOutputSize(w, kw, stride, p.Padding) + p.OutputPaddingW
	if oh <= 0 || ow <= 0 {
		return nil, shapeErr("conv_transpose2d", []int{n, cin, oh, ow}, x.shape, "non-positive output size")
	}

	k := cout * kh * kw
	spatial := h * w
	cols := make([]float32, k*spatial)
	out := Zeros(n, cout, oh, ow)

	for b := range n {
		blas32.Gemm(blas.Trans, blas.NoTrans, 1,
			general(cin, k, weight.data),
			general(cin, spatial, x.data[b*cin*spatial:(b+1)*cin*spatial]),
			0, general(k, spatial, cols))

		dst := out.data[b*cout*oh*ow : (b+1)*cout*oh*ow]
		col2im(cols, dst, cout, h, w, kh, kw, oh, ow, stride, p.Padding)

		if bias != nil {
			for c := range cout {
				plane := dst[c*oh*ow : (c+1)*oh*ow]
				for i := range plane {
					plane[i] += bias.data[c]
				}
			}
		}
	}

	return out, nil
}

func col2im(cols, dst []float32, cout, h, w, kh, kw, oh, ow, stride, pad int) {
	spatial := h * w
	for c := range cout {
		for i := range kh {
			for j := range kw {
				row := cols[((c*kh+i)*kw+j)*spatial:]
				for y := range h {
					oy := y*stride - pad + i
					if oy < 0 || oy >= oh {
						continue
					}
					for x := range w {
						ox := x*stride - pad + j
						if ox < 0 || ox >= ow {
							continue
						}
						dst[(c*oh+oy)*ow+ox] += row[y*w+x]
					}
				}
			}
		}
	}
}

func fill(s []float32, v float32) {
	for i := range s {
		s[i] = v
	}
}
