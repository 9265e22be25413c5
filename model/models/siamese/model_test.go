package siamese

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/7blacky7/gmncount/checkpoint"
	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/ml/nn"
	"github.com/7blacky7/gmncount/model"
)

func smallConfig() ResNetConfig {
	return ResNetConfig{Blocks: [4]int{1, 1, 1, 1}, Width: 4, InChannels: 3}
}

func randomImages(seed uint64, n int) *ml.Tensor {
	r := rand.New(rand.NewSource(seed))
	x := ml.Zeros(n, 3, 32, 32)
	for i := range x.Floats() {
		x.Floats()[i] = r.Float32()
	}
	return x
}

func newSmall(t *testing.T) *Model {
	t.Helper()
	m, err := New(smallConfig(), 10, RandomBackbone{Seed: 1}, 1)
	require.NoError(t, err)
	return m
}

func TestForwardIsSymmetric(t *testing.T) {
	m := newSmall(t)
	a, b := randomImages(1, 2), randomImages(2, 2)

	ab, err := m.Forward(a, b)
	require.NoError(t, err)
	ba, err := m.Forward(b, a)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 10}, ab.Shape())
	assert.True(t, ab.Equal(ba), "Vertauschen der Eingaben darf das Ergebnis nicht aendern")
}

func TestIdenticalInputsGiveBias(t *testing.T) {
	m := newSmall(t)
	x := randomImages(3, 2)

	y, err := m.Forward(x, x)
	require.NoError(t, err)

	bias := m.Output.Bias.Floats()
	for row := range 2 {
		assert.Equal(t, bias, y.Floats()[row*10:(row+1)*10])
	}
}

func TestSingleSharedBackbone(t *testing.T) {
	count := make(map[string]int)
	for _, p := range model.Parameters(newSmall(t)) {
		// torchvision-Faltungen haben keinen Bias-Slot
		if p.Tensor() == nil {
			continue
		}
		count[p.Name]++
	}

	for _, name := range []string{
		"resnet_model.conv1.weight",
		"resnet_model.bn1.running_mean",
		"resnet_model.layer1.0.conv3.weight",
		"resnet_model.layer1.0.downsample.0.weight",
		"resnet_model.layer2.0.downsample.1.running_var",
		"resnet_model.fc.fc1.weight",
		"resnet_model.fc.fc3.bias",
		"output.weight",
	} {
		assert.Equal(t, 1, count[name], name)
	}
	assert.NotContains(t, count, "resnet_model.conv1.bias")
}

func TestCheckpointBackbone(t *testing.T) {
	cfg := smallConfig()
	dir := t.TempDir()

	pretrained, err := NewResNet(cfg, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	// torchvision-Checkpoint inklusive ImageNet-Klassifikator
	sd := model.StateDict(pretrained)
	sd.Set("fc.weight", &checkpoint.Tensor{DType: ml.DTypeF32, Shape: []int{1000, cfg.Features()}, Data: make([]float32, 1000*cfg.Features())})
	sd.Set("fc.bias", &checkpoint.Tensor{DType: ml.DTypeF32, Shape: []int{1000}, Data: make([]float32, 1000)})
	torchvision := filepath.Join(dir, "resnet.safetensors")
	require.NoError(t, checkpoint.WriteSafetensors(torchvision, sd))

	m, err := New(cfg, 10, CheckpointBackbone{Path: torchvision}, 7)
	require.NoError(t, err)
	assert.True(t, m.Backbone.Conv1.Weight.Equal(pretrained.Conv1.Weight))

	// kompletter SiameseResNet-Checkpoint
	full := filepath.Join(dir, "siamese.safetensors")
	require.NoError(t, model.SaveFile(m, full))

	m2, err := New(cfg, 10, CheckpointBackbone{Path: full}, 8)
	require.NoError(t, err)
	assert.True(t, m2.Backbone.Layer4[0].Conv2.Weight.Equal(pretrained.Layer4[0].Conv2.Weight))

	_, err = New(ResNetConfig{Blocks: [4]int{2, 1, 1, 1}, Width: 4, InChannels: 3}, 10, CheckpointBackbone{Path: torchvision}, 1)
	require.ErrorIs(t, err, model.ErrCheckpointMismatch)
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(ResNetConfig{Blocks: [4]int{1, 0, 1, 1}, Width: 4, InChannels: 3}, 10, RandomBackbone{}, 0)
	require.ErrorIs(t, err, nn.ErrConfig)

	_, err = New(smallConfig(), 0, RandomBackbone{}, 0)
	require.ErrorIs(t, err, model.ErrInvalidOutputSize)

	assert.Equal(t, 2048, ResNet50Config().Features())
}
