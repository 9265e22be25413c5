// tensor.go - CPU-Tensor fuer Feature-Maps und Bottleneck-Vektoren
// Dieses Modul definiert den Tensor-Typ (row-major float32) und seine
// Konstruktoren. Alle Operationen liefern neue Tensoren, Eingaben werden
// nie veraendert.
package ml

import (
	"errors"
	"fmt"
	"slices"
)

// ErrShapeMismatch is the root of every dimension failure raised by a tensor op.
var ErrShapeMismatch = errors.New("ml: shape mismatch")

// ShapeError describes a dimension failure of a single operation.
type ShapeError struct {
	Op   string
	Want []int
	Got  []int
	Msg  string
}

func (e *ShapeError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("ml: %s: %s (want %v, got %v)", e.Op, e.Msg, e.Want, e.Got)
	}
	return fmt.Sprintf("ml: %s: shape mismatch (want %v, got %v)", e.Op, e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

func shapeErr(op string, want, got []int, format string, args ...any) error {
	return &ShapeError{Op: op, Want: slices.Clone(want), Got: slices.Clone(got), Msg: fmt.Sprintf(format, args...)}
}

// Tensor is a dense row-major float32 tensor. Feature maps use the NCHW layout,
// bottleneck vectors the NC layout.
type Tensor struct {
	shape []int
	data  []float32
}

func mul(s ...int) int {
	p := 1
	for _, v := range s {
		p *= v
	}
	return p
}

// New wraps data in a tensor of the given shape. The slice is not copied.
func New(data []float32, shape ...int) (*Tensor, error) {
	for _, d := range shape {
		if d <= 0 {
			return nil, shapeErr("new", nil, shape, "non-positive dimension")
		}
	}
	if n := mul(shape...); n != len(data) {
		return nil, shapeErr("new", []int{n}, []int{len(data)}, "data length does not match shape")
	}
	return &Tensor{shape: slices.Clone(shape), data: data}, nil
}

// Zeros allocates a zero-filled tensor. It panics on non-positive dimensions.
func Zeros(shape ...int) *Tensor {
	for _, d := range shape {
		if d <= 0 {
			panic(fmt.Sprintf("ml: invalid shape %v", shape))
		}
	}
	return &Tensor{shape: slices.Clone(shape), data: make([]float32, mul(shape...))}
}

// Full allocates a tensor with every element set to v.
func Full(v float32, shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// Shape returns a copy of the tensor dimensions.
func (t *Tensor) Shape() []int {
	return slices.Clone(t.shape)
}

// Dim returns the size of dimension n.
func (t *Tensor) Dim(n int) int {
	return t.shape[n]
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Len returns the total number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Floats exposes the backing slice. Callers must treat it as read-only
// unless they own the tensor.
func (t *Tensor) Floats() []float32 {
	return t.data
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{shape: slices.Clone(t.shape), data: slices.Clone(t.data)}
}

// Reshape returns a view with a new shape over the same data. A single -1
// dimension is inferred.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	shape = slices.Clone(shape)
	infer := -1
	known := 1
	for i, d := range shape {
		switch {
		case d == -1 && infer < 0:
			infer = i
		case d <= 0:
			return nil, shapeErr("reshape", shape, t.shape, "invalid target dimension")
		default:
			known *= d
		}
	}

	if infer >= 0 {
		if known == 0 || len(t.data)%known != 0 {
			return nil, shapeErr("reshape", shape, t.shape, "cannot infer dimension")
		}
		shape[infer] = len(t.data) / known
	}

	if mul(shape...) != len(t.data) {
		return nil, shapeErr("reshape", shape, t.shape, "element count differs")
	}

	return &Tensor{shape: shape, data: t.data}, nil
}

// Flatten keeps the batch dimension and collapses the rest, like view(-1, n).
func (t *Tensor) Flatten() (*Tensor, error) {
	if len(t.shape) < 2 {
		return nil, shapeErr("flatten", []int{-1, -1}, t.shape, "need at least two dimensions")
	}
	return t.Reshape(t.shape[0], -1)
}

// Equal reports whether two tensors have identical shapes and values.
func (t *Tensor) Equal(o *Tensor) bool {
	return slices.Equal(t.shape, o.shape) && slices.Equal(t.data, o.data)
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}

func (t *Tensor) expectRank(op string, rank int) error {
	if len(t.shape) != rank {
		want := make([]int, rank)
		for i := range want {
			want[i] = -1
		}
		return shapeErr(op, want, t.shape, "expected rank %d", rank)
	}
	return nil
}
