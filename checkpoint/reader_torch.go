package checkpoint

import (
	"errors"
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/7blacky7/gmncount/logutil"
	"github.com/7blacky7/gmncount/ml"
)

// ReadTorch loads a file written by torch.save. The root object must be a
// dict or OrderedDict of tensors; nested dicts such as
// {"state_dict": {...}} are flattened with dotted names.
func ReadTorch(path string) (*StateDict, error) {
	pt, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFormat, path, err)
	}

	sd := NewStateDict()
	if err := walkTorch(sd, "", pt); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sd.Len() == 0 {
		return nil, fmt.Errorf("%w: %s: no tensors found", ErrFormat, path)
	}
	return sd, nil
}

func walkTorch(sd *StateDict, prefix string, v any) error {
	join := func(k any) (string, error) {
		s, ok := k.(string)
		if !ok {
			return "", fmt.Errorf("%w: non-string key %v", ErrFormat, k)
		}
		if prefix == "" {
			return s, nil
		}
		return prefix + "." + s, nil
	}

	switch v := v.(type) {
	case *types.Dict:
		for _, k := range v.Keys() {
			name, err := join(k)
			if err != nil {
				return err
			}
			if err := walkTorch(sd, name, v.MustGet(k)); err != nil {
				return err
			}
		}
	case *types.OrderedDict:
		for e := v.List.Front(); e != nil; e = e.Next() {
			entry := e.Value.(*types.OrderedDictEntry)
			name, err := join(entry.Key)
			if err != nil {
				return err
			}
			if err := walkTorch(sd, name, entry.Value); err != nil {
				return err
			}
		}
	case *pytorch.Tensor:
		t, err := torchTensor(v)
		if err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
		logutil.Trace("checkpoint tensor", "name", prefix, "dtype", t.DType, "shape", t.Shape)
		sd.Set(prefix, t)
	default:
		// Optimiser state, epoch counters and similar metadata are skipped.
		if prefix == "" {
			return fmt.Errorf("%w: unsupported root object %T", ErrFormat, v)
		}
	}
	return nil
}

// torchTensor materialises a possibly strided view into contiguous data.
func torchTensor(pt *pytorch.Tensor) (*Tensor, error) {
	var (
		at    func(int) float32
		dtype ml.DType
		n     int
	)

	switch s := pt.Source.(type) {
	case *pytorch.FloatStorage:
		at, dtype, n = func(i int) float32 { return s.Data[i] }, ml.DTypeF32, len(s.Data)
	case *pytorch.HalfStorage:
		at, dtype, n = func(i int) float32 { return s.Data[i] }, ml.DTypeF16, len(s.Data)
	case *pytorch.BFloat16Storage:
		at, dtype, n = func(i int) float32 { return s.Data[i] }, ml.DTypeBF16, len(s.Data)
	case *pytorch.DoubleStorage:
		at, dtype, n = func(i int) float32 { return float32(s.Data[i]) }, ml.DTypeF64, len(s.Data)
	case *pytorch.LongStorage:
		at, dtype, n = func(i int) float32 { return float32(s.Data[i]) }, ml.DTypeI64, len(s.Data)
	case *pytorch.IntStorage:
		at, dtype, n = func(i int) float32 { return float32(s.Data[i]) }, ml.DTypeI32, len(s.Data)
	default:
		return nil, fmt.Errorf("%w: unsupported storage %T", ErrFormat, pt.Source)
	}

	shape := append([]int(nil), pt.Size...)
	data, err := gather(at, n, pt.StorageOffset, shape, pt.Stride)
	if err != nil {
		return nil, err
	}
	return &Tensor{DType: dtype, Shape: shape, Data: data}, nil
}

var errStorageBounds = errors.New("tensor view exceeds its storage")

func gather(at func(int) float32, n, offset int, shape, stride []int) ([]float32, error) {
	total := 1
	for _, d := range shape {
		total *= d
	}
	if len(stride) != len(shape) {
		stride = contiguousStride(shape)
	}

	out := make([]float32, total)
	idx := make([]int, len(shape))
	for i := range out {
		pos := offset
		for d := range idx {
			pos += idx[d] * stride[d]
		}
		if pos < 0 || pos >= n {
			return nil, fmt.Errorf("%w: %w", ErrFormat, errStorageBounds)
		}
		out[i] = at(pos)

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out, nil
}

func contiguousStride(shape []int) []int {
	stride := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		stride[i] = s
		s *= shape[i]
	}
	return stride
}
