// pool.go - Max-Pooling und adaptives Average-Pooling (NCHW)
package ml

import "math"

// MaxPool2D takes the maximum over kernel×kernel windows. Padded positions
// never win.
func MaxPool2D(x *Tensor, kernel, stride, padding int) (*Tensor, error) {
	if err := x.expectRank("max_pool2d", 4); err != nil {
		return nil, err
	}

	n, c, h, w := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	stride = max(stride, 1)
	oh := ConvOutputSize(h, kernel, stride, padding)
	ow := ConvOutputSize(w, kernel, stride, padding)
	if oh <= 0 || ow <= 0 {
		return nil, shapeErr("max_pool2d", []int{n, c, kernel, kernel}, x.shape, "input smaller than window")
	}

	out := Zeros(n, c, oh, ow)
	for p := range n * c {
		src := x.data[p*h*w : (p+1)*h*w]
		dst := out.data[p*oh*ow : (p+1)*oh*ow]
		for y := range oh {
			for xx := range ow {
				best := float32(math.Inf(-1))
				for i := range kernel {
					iy := y*stride - padding + i
					if iy < 0 || iy >= h {
						continue
					}
					for j := range kernel {
						ix := xx*stride - padding + j
						if ix < 0 || ix >= w {
							continue
						}
						best = max(best, src[iy*w+ix])
					}
				}
				dst[y*ow+xx] = best
			}
		}
	}

	return out, nil
}

// AdaptiveAvgPool2D averages into an outH×outW grid using the same window
// bounds as torch.nn.AdaptiveAvgPool2d.
func AdaptiveAvgPool2D(x *Tensor, outH, outW int) (*Tensor, error) {
	if err := x.expectRank("adaptive_avg_pool2d", 4); err != nil {
		return nil, err
	}
	if outH <= 0 || outW <= 0 {
		return nil, shapeErr("adaptive_avg_pool2d", []int{outH, outW}, x.shape, "non-positive output size")
	}

	n, c, h, w := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	out := Zeros(n, c, outH, outW)
	for p := range n * c {
		src := x.data[p*h*w : (p+1)*h*w]
		dst := out.data[p*outH*outW : (p+1)*outH*outW]
		for y := range outH {
			y0, y1 := (y*h)/outH, ((y+1)*h+outH-1)/outH
			for xx := range outW {
				x0, x1 := (xx*w)/outW, ((xx+1)*w+outW-1)/outW
				var sum float32
				for iy := y0; iy < y1; iy++ {
					for ix := x0; ix < x1; ix++ {
						sum += src[iy*w+ix]
					}
				}
				dst[y*outW+xx] = sum / float32((y1-y0)*(x1-x0))
			}
		}
	}

	return out, nil
}
