package checkpoint

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/d4l3k/go-bfloat16"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/x448/float16"

	"github.com/7blacky7/gmncount/ml"
)

// WriteOption configures WriteSafetensors.
type WriteOption func(*writeOptions)

type writeOptions struct {
	dtype    ml.DType
	metadata map[string]string
}

// WithDType sets the storage type for floating point tensors. F32, F16 and
// BF16 are supported. Integer tensors keep their type.
func WithDType(d ml.DType) WriteOption {
	return func(o *writeOptions) {
		o.dtype = d
	}
}

// WithMetadata adds a __metadata__ entry.
func WithMetadata(key, value string) WriteOption {
	return func(o *writeOptions) {
		o.metadata[key] = value
	}
}

// WriteSafetensors writes sd to path in state dict order.
func WriteSafetensors(path string, sd *StateDict, opts ...WriteOption) error {
	o := writeOptions{dtype: ml.DTypeF32, metadata: map[string]string{"format": "pt"}}
	for _, opt := range opts {
		opt(&o)
	}
	switch o.dtype {
	case ml.DTypeF32, ml.DTypeF16, ml.DTypeBF16:
	default:
		return fmt.Errorf("%w: cannot write %s tensors", ErrFormat, o.dtype)
	}

	header := orderedmap.New[string, any]()
	header.Set("__metadata__", o.metadata)

	dtypes := make(map[string]ml.DType, sd.Len())
	var offset int64
	_ = sd.Each(func(name string, t *Tensor) error {
		dtype := o.dtype
		if t.DType == ml.DTypeI64 || t.DType == ml.DTypeI32 {
			dtype = ml.DTypeI64
		}
		dtypes[name] = dtype

		size := int64(t.Elements() * dtype.Size())
		header.Set(name, safetensorMetadata{
			Type:    dtype.String(),
			Shape:   append([]int{}, t.Shape...),
			Offsets: []int64{offset, offset + size},
		})
		offset += size
		return nil
	})

	b, err := json.Marshal(header)
	if err != nil {
		return err
	}
	// the data section must start on an 8 byte boundary
	if pad := len(b) % 8; pad != 0 {
		b = append(b, strings.Repeat(" ", 8-pad)...)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint64(len(b))); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}

	if err := sd.Each(func(name string, t *Tensor) error {
		return writeTensorData(w, dtypes[name], t.Data)
	}); err != nil {
		return err
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func writeTensorData(w *bufio.Writer, dtype ml.DType, data []float32) error {
	switch dtype {
	case ml.DTypeF16:
		u16s := make([]uint16, len(data))
		for i, v := range data {
			u16s[i] = float16.Fromfloat32(v).Bits()
		}
		return binary.Write(w, binary.LittleEndian, u16s)
	case ml.DTypeBF16:
		_, err := w.Write(bfloat16.EncodeFloat32(data))
		return err
	case ml.DTypeI64:
		i64s := make([]int64, len(data))
		for i, v := range data {
			i64s[i] = int64(math.Round(float64(v)))
		}
		return binary.Write(w, binary.LittleEndian, i64s)
	default:
		return binary.Write(w, binary.LittleEndian, data)
	}
}
