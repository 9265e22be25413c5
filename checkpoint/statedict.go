// Package checkpoint reads and writes named tensor collections (state dicts)
// as stored by PyTorch and safetensors.
package checkpoint

import (
	"fmt"
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/7blacky7/gmncount/ml"
)

// Tensor is a decoded checkpoint entry. Values are always widened to
// float32; DType records the on-disk type.
type Tensor struct {
	DType ml.DType
	Shape []int
	Data  []float32
}

// NewTensor wraps an ml.Tensor as a float32 checkpoint entry.
func NewTensor(t *ml.Tensor) *Tensor {
	return &Tensor{
		DType: ml.DTypeF32,
		Shape: t.Shape(),
		Data:  slices.Clone(t.Floats()),
	}
}

// Elements returns the element count implied by the shape.
func (t *Tensor) Elements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Tensor converts the entry into an ml.Tensor sharing its data.
func (t *Tensor) Tensor() (*ml.Tensor, error) {
	return ml.New(t.Data, t.Shape...)
}

func (t *Tensor) String() string {
	return fmt.Sprintf("%s%v", t.DType, t.Shape)
}

// StateDict maps tensor names to tensors in insertion order.
type StateDict struct {
	m *orderedmap.OrderedMap[string, *Tensor]
}

func NewStateDict() *StateDict {
	return &StateDict{m: orderedmap.New[string, *Tensor]()}
}

// Set adds or replaces a tensor. Replacing keeps the original position.
func (sd *StateDict) Set(name string, t *Tensor) {
	sd.m.Set(name, t)
}

func (sd *StateDict) Get(name string) (*Tensor, bool) {
	return sd.m.Get(name)
}

func (sd *StateDict) Delete(name string) {
	sd.m.Delete(name)
}

func (sd *StateDict) Len() int {
	return sd.m.Len()
}

// Names returns all tensor names in insertion order.
func (sd *StateDict) Names() []string {
	names := make([]string, 0, sd.m.Len())
	for pair := sd.m.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Each calls fn for every tensor in insertion order and stops at the first
// error.
func (sd *StateDict) Each(fn func(name string, t *Tensor) error) error {
	for pair := sd.m.Oldest(); pair != nil; pair = pair.Next() {
		if err := fn(pair.Key, pair.Value); err != nil {
			return err
		}
	}
	return nil
}

// Sub returns the tensors under prefix with the prefix and its trailing dot
// removed, e.g. Sub("resnet_model") turns "resnet_model.conv1.weight" into
// "conv1.weight".
func (sd *StateDict) Sub(prefix string) *StateDict {
	prefix = strings.TrimSuffix(prefix, ".") + "."
	out := NewStateDict()
	for pair := sd.m.Oldest(); pair != nil; pair = pair.Next() {
		if name, ok := strings.CutPrefix(pair.Key, prefix); ok {
			out.Set(name, pair.Value)
		}
	}
	return out
}

// Parameters returns the total number of values across all tensors.
func (sd *StateDict) Parameters() int {
	var n int
	for pair := sd.m.Oldest(); pair != nil; pair = pair.Next() {
		n += pair.Value.Elements()
	}
	return n
}
