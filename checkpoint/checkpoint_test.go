package checkpoint

import (
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7blacky7/gmncount/ml"
)

func testStateDict() *StateDict {
	sd := NewStateDict()
	sd.Set("decoder.fc4.weight", &Tensor{DType: ml.DTypeF32, Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}})
	sd.Set("decoder.fc4.bias", &Tensor{DType: ml.DTypeF32, Shape: []int{2}, Data: []float32{-0.5, 0.25}})
	sd.Set("decoder.fc4_bn.num_batches_tracked", &Tensor{DType: ml.DTypeI64, Shape: []int{}, Data: []float32{42}})
	sd.Set("encoder.fc11.bias", &Tensor{DType: ml.DTypeF32, Shape: []int{1}, Data: []float32{3}})
	return sd
}

func TestSafetensorsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.safetensors")
	sd := testStateDict()
	require.NoError(t, WriteSafetensors(path, sd))

	got, err := Read(path)
	require.NoError(t, err)

	if diff := cmp.Diff(sd.Names(), got.Names()); diff != "" {
		t.Fatalf("Reihenfolge der Tensoren falsch (-want +got):\n%s", diff)
	}

	for _, name := range sd.Names() {
		want, _ := sd.Get(name)
		have, ok := got.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, want.DType, have.DType, name)
		assert.Equal(t, want.Shape, have.Shape, name)
		assert.Equal(t, want.Data, have.Data, name)
	}
	assert.Equal(t, 10, got.Parameters())
}

func TestSafetensorsHalfPrecision(t *testing.T) {
	for _, dtype := range []ml.DType{ml.DTypeF16, ml.DTypeBF16} {
		t.Run(dtype.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "half.safetensors")
			require.NoError(t, WriteSafetensors(path, testStateDict(), WithDType(dtype)))

			got, err := ReadSafetensors(path)
			require.NoError(t, err)

			w, ok := got.Get("decoder.fc4.weight")
			require.True(t, ok)
			assert.Equal(t, dtype, w.DType)
			assert.InDeltaSlice(t, []float32{1, 2, 3, 4, 5, 6}, w.Data, 1e-2)

			n, ok := got.Get("decoder.fc4_bn.num_batches_tracked")
			require.True(t, ok)
			assert.Equal(t, ml.DTypeI64, n.DType)
		})
	}

	err := WriteSafetensors(filepath.Join(t.TempDir(), "x.safetensors"), testStateDict(), WithDType(ml.DTypeI32))
	require.ErrorIs(t, err, ErrFormat)
}

func TestSafetensorsCorruptFiles(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short.safetensors")
	require.NoError(t, os.WriteFile(short, []byte{1, 2, 3}, 0o644))
	_, err := Read(short)
	require.ErrorIs(t, err, ErrFormat)

	// header announces more bytes than the tensor data holds
	header := []byte(`{"a":{"dtype":"F32","shape":[4],"data_offsets":[0,16]}}`)
	b := binary.LittleEndian.AppendUint64(nil, uint64(len(header)))
	b = append(b, header...)
	b = append(b, 0, 0, 0, 0)
	truncated := filepath.Join(dir, "truncated.safetensors")
	require.NoError(t, os.WriteFile(truncated, b, 0o644))
	_, err = Read(truncated)
	require.ErrorIs(t, err, ErrFormat)

	_, err = Read(filepath.Join(dir, "weights.onnx"))
	require.ErrorIs(t, err, ErrFormat)
}

func TestGatherStridedView(t *testing.T) {
	storage := []float32{0, 1, 2, 3, 4, 5, 6}
	at := func(i int) float32 { return storage[i] }

	// transposed 2x3 view of a 3x2 matrix starting at offset 1
	got, err := gather(at, len(storage), 1, []int{2, 3}, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 3, 5, 2, 4, 6}, got)

	got, err = gather(at, len(storage), 0, []int{2, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 2, 3}, got)

	scalar, err := gather(at, len(storage), 6, []int{}, []int{})
	require.NoError(t, err)
	assert.Equal(t, []float32{6}, scalar)

	_, err = gather(at, len(storage), 5, []int{4}, []int{1})
	require.ErrorIs(t, err, ErrFormat)
}

func TestStateDictSub(t *testing.T) {
	sub := testStateDict().Sub("decoder")
	assert.Equal(t, []string{"fc4.weight", "fc4.bias", "fc4_bn.num_batches_tracked"}, sub.Names())
}

func TestChannelPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ConvVAEGMN_r.pt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ConvVAEGMN_g.safetensors"), nil, 0o644))

	p, err := ChannelPath(root, "ConvVAEGMN", ChannelRed)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ConvVAEGMN_r.pt"), p)

	p, err = ChannelPath(root, "ConvVAEGMN", ChannelGreen)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ConvVAEGMN_g.safetensors"), p)

	_, err = ChannelPath(root, "ConvVAEGMN", ChannelBlue)
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "ConvVAEGMN_b.pt")
}
