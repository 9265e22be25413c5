// layout.go - Umwandlung zwischen CHW (Modell) und HWC (Bild/Anzeige)
// Nutzt pdevine/tensor fuer die Achsen-Permutation.
package ml

import (
	"fmt"
	"slices"

	"github.com/pdevine/tensor"
)

// ToHWC moves the channel axis of a C×H×W (or 1×C×H×W) tensor to the end,
// the layout image sinks expect.
func ToHWC(t *Tensor) ([]float32, error) {
	shape := t.shape
	if len(shape) == 4 {
		if shape[0] != 1 {
			return nil, shapeErr("to_hwc", []int{1, shape[1], shape[2], shape[3]}, shape, "expected a single image")
		}
		shape = shape[1:]
	}
	if len(shape) != 3 {
		return nil, shapeErr("to_hwc", []int{-1, -1, -1}, t.shape, "expected rank 3")
	}
	if shape[0] == 1 {
		return slices.Clone(t.data), nil
	}

	d := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(slices.Clone(t.data)))
	if err := d.T(1, 2, 0); err != nil {
		return nil, err
	}
	if err := d.Transpose(); err != nil {
		return nil, err
	}

	hwc, ok := d.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("ml: unexpected backing type %T", d.Data())
	}
	return hwc, nil
}

// FromHWC builds a 1×C×H×W tensor from interleaved H×W×C data.
func FromHWC(hwc []float32, h, w, c int) (*Tensor, error) {
	if len(hwc) != h*w*c {
		return nil, shapeErr("from_hwc", []int{h, w, c}, []int{len(hwc)}, "data length does not match shape")
	}
	if c == 1 {
		return New(slices.Clone(hwc), 1, 1, h, w)
	}

	d := tensor.New(tensor.WithShape(h, w, c), tensor.WithBacking(slices.Clone(hwc)))
	if err := d.T(2, 0, 1); err != nil {
		return nil, err
	}
	if err := d.Transpose(); err != nil {
		return nil, err
	}

	chw, ok := d.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("ml: unexpected backing type %T", d.Data())
	}
	return New(chw, 1, c, h, w)
}
