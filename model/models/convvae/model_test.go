package convvae

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/7blacky7/gmncount/checkpoint"
	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/ml/nn"
	"github.com/7blacky7/gmncount/model"
)

func newModel(t *testing.T, opts ...model.Option) *Model {
	t.Helper()
	o := model.DefaultOptions()
	o.Apply(opts...)
	m, err := New(o)
	require.NoError(t, err)
	return m
}

func TestScheduleIsConsistent(t *testing.T) {
	for _, c := range []int{1, 3} {
		require.NoError(t, ValidateSchedule(EncoderSchedule(c), DecoderSchedule(c)))
	}

	broken := DecoderSchedule(3)
	broken[3].Target = nn.Square(13)
	require.ErrorIs(t, ValidateSchedule(EncoderSchedule(3), broken), nn.ErrConfig)
}

func TestDecoderStageShapes(t *testing.T) {
	m := newModel(t, model.WithChannels(3))

	x := ml.Zeros(2, Features, 1, 1)
	var sizes []int
	for _, l := range m.Decoder.Layers {
		var err error
		x, err = l.Forward(x)
		require.NoError(t, err)
		if _, ok := l.(*nn.ConvTranspose2D); ok {
			sizes = append(sizes, x.Dim(2))
			assert.Equal(t, x.Dim(2), x.Dim(3))
		}
	}

	if diff := cmp.Diff([]int{1, 3, 6, 14, 30, 63}, sizes); diff != "" {
		t.Errorf("Groessen-Fahrplan falsch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{2, 3, 63, 63}, x.Shape())
}

func TestRoundTripPreservesShape(t *testing.T) {
	for _, channels := range []int{1, 3} {
		m := newModel(t, model.WithChannels(channels), model.WithSeed(3))
		x := ml.Full(0.5, 2, channels, InputSize, InputSize)

		mu, logvar, err := m.Encode(x)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 512}, mu.Shape())
		assert.Equal(t, []int{2, 512}, logvar.Shape())

		y, err := m.Reconstruct(x)
		require.NoError(t, err)
		assert.Equal(t, x.Shape(), y.Shape())

		decoded, _, _, err := m.Forward(x)
		require.NoError(t, err)
		assert.Equal(t, x.Shape(), decoded.Shape())
		for _, v := range decoded.Floats() {
			require.LessOrEqual(t, math.Abs(float64(v)), 1.0)
		}
	}
}

func TestEncoderRejectsWrongInputSize(t *testing.T) {
	m := newModel(t, model.WithChannels(1))

	_, _, err := m.Encode(ml.Zeros(1, 1, 8, 8))
	require.ErrorIs(t, err, ml.ErrShapeMismatch)

	_, _, err = m.Encode(ml.Zeros(1, 3, 63, 63))
	require.ErrorIs(t, err, ml.ErrShapeMismatch)

	for _, size := range []int{62, 64} {
		_, _, err = m.Encode(ml.Zeros(1, 1, size, size))
		require.ErrorIs(t, err, ml.ErrShapeMismatch, "%dx%d", size, size)
	}

	_, err = New(func() model.Options { o := model.DefaultOptions(); o.InputSize = 96; return o }())
	require.ErrorIs(t, err, model.ErrInvalidInputSize)
}

func TestReparametrize(t *testing.T) {
	const n = 20000
	mu := ml.Zeros(4, n/4)
	for i := range mu.Floats() {
		mu.Floats()[i] = float32(i%7) - 3
	}

	t.Run("collapsed variance", func(t *testing.T) {
		z, err := Reparametrize(mu, ml.Full(float32(math.Inf(-1)), 4, n/4), SeededNoise(1))
		require.NoError(t, err)
		assert.Equal(t, mu.Floats(), z.Floats())
	})

	t.Run("unit variance", func(t *testing.T) {
		z, err := Reparametrize(mu, ml.Zeros(4, n/4), SeededNoise(2))
		require.NoError(t, err)

		eps := make([]float64, n)
		for i, v := range z.Floats() {
			eps[i] = float64(v - mu.Floats()[i])
		}
		mean, variance := stat.MeanVariance(eps, nil)
		assert.InDelta(t, 0, mean, 0.05)
		assert.InDelta(t, 1, variance, 0.05)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := Reparametrize(mu, ml.Zeros(1, 3), ZeroNoise)
		require.ErrorIs(t, err, ml.ErrShapeMismatch)
	})

	t.Run("seeded noise is reproducible", func(t *testing.T) {
		a, b := SeededNoise(9), SeededNoise(9)
		for range 10 {
			assert.Equal(t, a(), b())
		}
	})
}

func TestCheckpointLayout(t *testing.T) {
	sd := model.StateDict(newModel(t, model.WithChannels(1)))
	names := sd.Names()

	for _, name := range []string{
		"encoder.encoder.0.weight",
		"encoder.encoder.2.bias",
		"encoder.encoder.3.running_mean",
		"encoder.encoder.15.num_batches_tracked",
		"encoder.fc11.weight",
		"encoder.fc12.bias",
		"decoder.fc4.weight",
		"decoder.fc4_bn.running_var",
		"decoder.decoder.0.weight",
		"decoder.decoder.13.running_mean",
		"decoder.decoder.15.bias",
	} {
		assert.Contains(t, names, name)
	}
	assert.NotContains(t, names, "encoder.encoder.1.weight")
	assert.NotContains(t, names, "decoder.decoder.16.weight")

	w, _ := sd.Get("decoder.decoder.15.weight")
	assert.Equal(t, []int{32, 1, 7, 7}, w.Shape)
}

func TestLoadIgnoresUnusedBatchNorm(t *testing.T) {
	src := newModel(t, model.WithChannels(1), model.WithSeed(5))
	sd := model.StateDict(src)
	for _, key := range []string{"weight", "bias", "running_mean", "running_var"} {
		sd.Set("decoder.fc3_bn."+key, &checkpoint.Tensor{DType: ml.DTypeF32, Shape: []int{512}, Data: make([]float32, 512)})
	}

	dst := newModel(t, model.WithChannels(1), model.WithSeed(6))
	require.NoError(t, model.Load(dst, sd))

	x := ml.Full(0.25, 1, 1, InputSize, InputSize)
	want, err := src.Reconstruct(x)
	require.NoError(t, err)
	got, err := dst.Reconstruct(x)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	// Einzelkanal-Checkpoint passt nicht in ein RGB-Modell
	rgb := newModel(t, model.WithChannels(3))
	require.ErrorIs(t, model.Load(rgb, sd), model.ErrCheckpointMismatch)
}

func TestFailedValidationKeepsWeights(t *testing.T) {
	src := newModel(t, model.WithChannels(1), model.WithSeed(5))
	sd := model.StateDict(src)
	rv, ok := sd.Get("encoder.encoder.3.running_var")
	require.True(t, ok)
	rv.Data[0] = -1

	dst := newModel(t, model.WithChannels(1), model.WithSeed(6))
	before := model.StateDict(dst)

	err := model.Load(dst, sd)
	require.ErrorContains(t, err, "negative running variance")

	after := model.StateDict(dst)
	require.Equal(t, before.Names(), after.Names())
	for _, name := range before.Names() {
		want, _ := before.Get(name)
		got, _ := after.Get(name)
		assert.Equal(t, want.Data, got.Data, name)
	}
}

func TestRegistered(t *testing.T) {
	m, err := model.New("ConvVAE", model.WithChannels(1))
	require.NoError(t, err)
	assert.Equal(t, Name, m.Name())
	assert.Equal(t, 1, m.(*Model).Channels())

	name, err := model.Canonical("ConvVAE")
	require.NoError(t, err)
	assert.Equal(t, "ConvVAEGMN", name)
}
