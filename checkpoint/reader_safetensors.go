package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/7blacky7/gmncount/logutil"
	"github.com/7blacky7/gmncount/ml"
)

type safetensorMetadata struct {
	Type    string  `json:"dtype"`
	Shape   []int   `json:"shape"`
	Offsets []int64 `json:"data_offsets"`
}

// ReadSafetensors loads every tensor of a safetensors file. Tensors keep the
// order of their data offsets.
func ReadSafetensors(path string) (*StateDict, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	sd, err := parseSafetensors(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sd, nil
}

func parseSafetensors(b []byte) (*StateDict, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("%w: file too short", ErrFormat)
	}

	n := int64(binary.LittleEndian.Uint64(b[:8]))
	if n <= 0 || n > int64(len(b)-8) {
		return nil, fmt.Errorf("%w: invalid header length %d", ErrFormat, n)
	}

	var headers map[string]safetensorMetadata
	if err := json.NewDecoder(bytes.NewReader(b[8 : 8+n])).Decode(&headers); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrFormat, err)
	}

	keys := make([]string, 0, len(headers))
	for k, v := range headers {
		// __metadata__ carries no dtype
		if v.Type == "" {
			continue
		}
		if len(v.Offsets) != 2 {
			return nil, fmt.Errorf("%w: %s: invalid data offsets %v", ErrFormat, k, v.Offsets)
		}
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return int(headers[a].Offsets[0] - headers[b].Offsets[0])
	})

	data := b[8+n:]
	sd := NewStateDict()
	for _, k := range keys {
		meta := headers[k]
		if meta.Offsets[0] < 0 || meta.Offsets[1] < meta.Offsets[0] || meta.Offsets[1] > int64(len(data)) {
			return nil, fmt.Errorf("%w: %s: invalid data offsets %v", ErrFormat, k, meta.Offsets)
		}

		t, err := decodeSafetensor(meta, data[meta.Offsets[0]:meta.Offsets[1]])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}

		logutil.Trace("checkpoint tensor", "name", k, "dtype", t.DType, "shape", t.Shape)
		sd.Set(k, t)
	}
	return sd, nil
}

func decodeSafetensor(meta safetensorMetadata, raw []byte) (*Tensor, error) {
	t := &Tensor{DType: ml.ParseDType(meta.Type), Shape: slices.Clone(meta.Shape)}
	if t.DType == ml.DTypeOther {
		return nil, fmt.Errorf("%w: unknown data type %s", ErrFormat, meta.Type)
	}
	if want := t.Elements() * t.DType.Size(); want != len(raw) {
		return nil, fmt.Errorf("%w: %s%v needs %d bytes, found %d", ErrFormat, t.DType, t.Shape, want, len(raw))
	}

	n := t.Elements()
	t.Data = make([]float32, n)
	switch t.DType {
	case ml.DTypeF32:
		for i := range n {
			t.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case ml.DTypeF16:
		for i := range n {
			t.Data[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32()
		}
	case ml.DTypeBF16:
		t.Data = bfloat16.DecodeFloat32(raw)
	case ml.DTypeF64:
		for i := range n {
			t.Data[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	case ml.DTypeI64:
		for i := range n {
			t.Data[i] = float32(int64(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	case ml.DTypeI32:
		for i := range n {
			t.Data[i] = float32(int32(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	}
	return t, nil
}
