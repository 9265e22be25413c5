package validate

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7blacky7/gmncount/checkpoint"
	"github.com/7blacky7/gmncount/dataset"
	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/model"
	"github.com/7blacky7/gmncount/model/models/convvae"
	"github.com/7blacky7/gmncount/model/models/siamese"
	"github.com/7blacky7/gmncount/vision"
)

// offsetModel "decodes" a channel by adding a constant.
type offsetModel struct {
	offset float32
}

func (offsetModel) Name() string { return "offset" }

func (m offsetModel) Forward(x *ml.Tensor) (*ml.Tensor, *ml.Tensor, *ml.Tensor, error) {
	y := x.Clone()
	for i := range y.Floats() {
		y.Floats()[i] += m.offset
	}
	return y, nil, nil, nil
}

func TestReconstructColorsKeepsChannelOrder(t *testing.T) {
	models := ChannelModels{offsetModel{1}, offsetModel{2}, offsetModel{3}}

	img := ml.Zeros(3, 4, 4)
	for i := range img.Floats() {
		img.Floats()[i] = float32(i / 16)
	}

	y, err := ReconstructColors(context.Background(), models, img, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 4, 4}, y.Shape())
	assert.Equal(t, float32(1), y.Floats()[0])
	assert.Equal(t, float32(3), y.Floats()[16])
	assert.Equal(t, float32(5), y.Floats()[47])

	_, err = ReconstructColors(context.Background(), models, ml.Zeros(1, 4, 4), 0)
	require.ErrorIs(t, err, ml.ErrShapeMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ReconstructColors(ctx, models, img, 0)
	require.ErrorIs(t, err, context.Canceled)
}

// writeChannelModels saves three independently initialised single-channel models.
func writeChannelModels(t *testing.T, root string) {
	t.Helper()
	for c, channel := range checkpoint.Channels {
		o := model.DefaultOptions()
		o.Apply(model.WithChannels(1), model.WithSeed(uint64(10+c)))
		m, err := convvae.New(o)
		require.NoError(t, err)
		require.NoError(t, model.SaveFile(m, filepath.Join(root, convvae.Name+"_"+channel+".safetensors")))
	}
}

func TestLoadChannelModels(t *testing.T) {
	root := t.TempDir()
	writeChannelModels(t, root)

	models, err := LoadChannelModels(context.Background(), root, "ConvVAE", model.WithSeed(3))
	require.NoError(t, err)
	for _, m := range models {
		require.NotNil(t, m)
		assert.Equal(t, 1, m.(*convvae.Model).Channels())
	}

	require.NoError(t, os.Remove(filepath.Join(root, convvae.Name+"_g.safetensors")))
	_, err = LoadChannelModels(context.Background(), root, "ConvVAE")
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = LoadChannelModels(context.Background(), root, "ConvVAX")
	require.ErrorIs(t, err, model.ErrNotRegistered)

	// abgelehnt bevor ein ResNet gebaut wird
	_, err = LoadChannelModels(context.Background(), root, siamese.Name)
	require.ErrorIs(t, err, ErrNotAutoencoder)

	assert.Equal(t, []string{"ConvVAE", convvae.Name}, Autoencoders())
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	writeChannelModels(t, root)

	cfg := DefaultConfig()
	cfg.ModelRoot = root
	cfg.Dataset = dataset.SyntheticName
	cfg.CPU = true
	cfg.Seed = 5
	cfg.Output = filepath.Join(t.TempDir(), "validate.png")

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, convvae.Name, res.Model)
	assert.GreaterOrEqual(t, res.Index, 0)
	assert.Equal(t, []int{1, 3, convvae.InputSize, convvae.InputSize}, res.Decoded.Shape())
	assert.Equal(t, res.Decoded.Shape(), res.Original.Shape())
	assert.Positive(t, res.MSE)

	img, err := vision.LoadImage(cfg.Output)
	require.NoError(t, err)
	assert.Equal(t, vision.FormatPNG, img.Format)

	// gleicher Seed, gleiches Beispiel und gleiche Rekonstruktion
	again, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, res.Index, again.Index)
	assert.True(t, res.Decoded.Equal(again.Decoded))

	cfg.Index = 1000
	_, err = Run(context.Background(), cfg)
	require.ErrorIs(t, err, dataset.ErrIndex)
}
