package ml

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func randomTensor(r *rand.Rand, shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = r.Float32()*2 - 1
	}
	return t
}

// naiveConvTranspose2D scatters every input element into the output window.
func naiveConvTranspose2D(x, weight, bias *Tensor, p ConvTranspose2DParams) *Tensor {
	n, cin, h, w := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	cout, kh, kw := weight.shape[1], weight.shape[2], weight.shape[3]
	oh := (h-1)*p.Stride - 2*p.Padding + kh + p.OutputPaddingH
	ow := (w-1)*p.Stride - 2*p.Padding + kw + p.OutputPaddingW

	out := Zeros(n, cout, oh, ow)
	for b := 0; b < n; b++ {
		for ic := 0; ic < cin; ic++ {
			for ih := 0; ih < h; ih++ {
				for iw := 0; iw < w; iw++ {
					v := x.data[((b*cin+ic)*h+ih)*w+iw]
					for oc := 0; oc < cout; oc++ {
						for i := 0; i < kh; i++ {
							y := ih*p.Stride - p.Padding + i
							if y < 0 || y >= oh {
								continue
							}
							for j := 0; j < kw; j++ {
								xx := iw*p.Stride - p.Padding + j
								if xx < 0 || xx >= ow {
									continue
								}
								out.data[((b*cout+oc)*oh+y)*ow+xx] += v * weight.data[((ic*cout+oc)*kh+i)*kw+j]
							}
						}
					}
				}
			}
		}
	}
	if bias != nil {
		for b := 0; b < n; b++ {
			for oc := 0; oc < cout; oc++ {
				for i := 0; i < oh*ow; i++ {
					out.data[(b*cout+oc)*oh*ow+i] += bias.data[oc]
				}
			}
		}
	}
	return out
}

func naiveConv2D(x, weight, bias *Tensor, p Conv2DParams) *Tensor {
	n, cin, h, w := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	cout, kh, kw := weight.shape[0], weight.shape[2], weight.shape[3]
	oh := (h+2*p.Padding-kh)/p.Stride + 1
	ow := (w+2*p.Padding-kw)/p.Stride + 1

	out := Zeros(n, cout, oh, ow)
	for b := 0; b < n; b++ {
		for oc := 0; oc < cout; oc++ {
			for y := 0; y < oh; y++ {
				for xx := 0; xx < ow; xx++ {
					var sum float32
					if bias != nil {
						sum = bias.data[oc]
					}
					for ic := 0; ic < cin; ic++ {
						for i := 0; i < kh; i++ {
							iy := y*p.Stride - p.Padding + i
							if iy < 0 || iy >= h {
								continue
							}
							for j := 0; j < kw; j++ {
								ix := xx*p.Stride - p.Padding + j
								if ix < 0 || ix >= w {
									continue
								}
								sum += x.data[((b*cin+ic)*h+iy)*w+ix] * weight.data[((oc*cin+ic)*kh+i)*kw+j]
							}
						}
					}
					out.data[((b*cout+oc)*oh+y)*ow+xx] = sum
				}
			}
		}
	}
	return out
}

func requireClose(t *testing.T, want, got *Tensor) {
	t.Helper()
	if diff := cmp.Diff(want.Shape(), got.Shape()); diff != "" {
		t.Fatalf("shape mismatch (-want +got):\n%s", diff)
	}
	for i := range want.data {
		require.InDelta(t, want.data[i], got.data[i], 1e-4, "element %d", i)
	}
}

func TestConv2DMatchesReference(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	cases := []struct {
		name    string
		x, w    []int
		stride  int
		padding int
	}{
		{"encoder stage 1", []int{2, 3, 63, 63}, []int{4, 3, 7, 7}, 2, 1},
		{"odd input", []int{1, 2, 30, 30}, []int{3, 2, 5, 5}, 2, 1},
		{"no padding", []int{1, 4, 3, 3}, []int{2, 4, 3, 3}, 2, 0},
		{"pointwise", []int{3, 5, 1, 1}, []int{6, 5, 1, 1}, 1, 0},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			x := randomTensor(r, tt.x...)
			w := randomTensor(r, tt.w...)
			b := randomTensor(r, tt.w[0])
			p := Conv2DParams{Stride: tt.stride, Padding: tt.padding}

			got, err := Conv2D(x, w, b, p)
			require.NoError(t, err)
			requireClose(t, naiveConv2D(x, w, b, p), got)
		})
	}
}

func TestConvTranspose2DMatchesReference(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	cases := []struct {
		name   string
		x, w   []int
		params ConvTranspose2DParams
	}{
		{"1x1 to 3x3", []int{2, 4, 1, 1}, []int{4, 3, 3, 3}, ConvTranspose2DParams{Stride: 2}},
		{"3x3 to 6x6", []int{1, 3, 3, 3}, []int{3, 2, 3, 3}, ConvTranspose2DParams{Stride: 2, Padding: 1, OutputPaddingH: 1, OutputPaddingW: 1}},
		{"30x30 to 63x63", []int{1, 2, 30, 30}, []int{2, 1, 7, 7}, ConvTranspose2DParams{Stride: 2, Padding: 1}},
		{"asymmetric padding", []int{1, 2, 4, 5}, []int{2, 2, 3, 3}, ConvTranspose2DParams{Stride: 3, Padding: 1, OutputPaddingH: 2, OutputPaddingW: 0}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			x := randomTensor(r, tt.x...)
			w := randomTensor(r, tt.w...)
			b := randomTensor(r, tt.w[1])

			got, err := ConvTranspose2D(x, w, b, tt.params)
			require.NoError(t, err)
			requireClose(t, naiveConvTranspose2D(x, w, b, tt.params), got)
		})
	}
}

func TestConvChannelMismatch(t *testing.T) {
	x := Zeros(1, 3, 8, 8)

	_, err := Conv2D(x, Zeros(4, 1, 3, 3), nil, Conv2DParams{Stride: 1})
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = ConvTranspose2D(x, Zeros(1, 4, 3, 3), nil, ConvTranspose2DParams{Stride: 1})
	var se *ShapeError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "conv_transpose2d", se.Op)
}

func TestLinear(t *testing.T) {
	x, err := New([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	w, err := New([]float32{1, 0, 0, 0, 1, 1}, 2, 3)
	require.NoError(t, err)
	b, err := New([]float32{10, 20}, 2)
	require.NoError(t, err)

	y, err := Linear(x, w, b)
	require.NoError(t, err)
	require.Equal(t, []int{2, 2}, y.Shape())
	require.Equal(t, []float32{11, 25, 14, 31}, y.Floats())

	_, err = Linear(x, Zeros(2, 4), nil)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestPooling(t *testing.T) {
	x, err := New([]float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, 1, 1, 4, 4)
	require.NoError(t, err)

	m, err := MaxPool2D(x, 3, 2, 1)
	require.NoError(t, err)
	require.Equal(t, []int{1, 1, 2, 2}, m.Shape())
	require.Equal(t, []float32{6, 8, 14, 16}, m.Floats())

	a, err := AdaptiveAvgPool2D(x, 1, 1)
	require.NoError(t, err)
	require.Equal(t, []int{1, 1, 1, 1}, a.Shape())
	require.InDelta(t, 8.5, a.Floats()[0], 1e-6)
}

func TestBatchNorm(t *testing.T) {
	x, err := New([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 1, 2, 2, 2)
	require.NoError(t, err)
	mean, _ := New([]float32{2, 0}, 2)
	variance, _ := New([]float32{4, 1}, 2)
	weight, _ := New([]float32{1, 2}, 2)
	bias, _ := New([]float32{0, 1}, 2)

	y, err := BatchNorm(x, mean, variance, weight, bias, 0)
	require.NoError(t, err)
	require.Equal(t, []float32{-0.5, 0, 0.5, 1, 11, 13, 15, 17}, y.Floats())

	_, err = BatchNorm(Zeros(1, 3), mean, variance, weight, bias, 0)
	require.ErrorIs(t, err, ErrShapeMismatch)
}
