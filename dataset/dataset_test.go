package dataset

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestRegistry(t *testing.T) {
	assert.Subset(t, Names(), []string{FolderName, SyntheticName})

	_, err := Open("synthetc", "", DefaultOptions())
	require.ErrorIs(t, err, ErrUnknownDataset)
	assert.Contains(t, err.Error(), `did you mean "synthetic"?`)

	assert.Panics(t, func() { Register(FolderName, nil) })
}

func TestFolder(t *testing.T) {
	root := t.TempDir()
	split := filepath.Join(root, "test")
	writePNG(t, filepath.Join(split, "images", "b.png"), 40, 30, color.White)
	writePNG(t, filepath.Join(split, "images", "a.png"), 20, 20, color.RGBA{255, 0, 0, 255})
	writePNG(t, filepath.Join(split, "templates", "a_0.png"), 10, 12, color.RGBA{0, 0, 255, 255})
	writePNG(t, filepath.Join(split, "templates", "a_1.png"), 9, 9, color.Black)
	require.NoError(t, os.WriteFile(filepath.Join(split, "images", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(split, "counts.json"), []byte(`{"a": 5}`), 0o644))

	d, err := Open(FolderName, root, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 2, d.Len())

	ex, err := d.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "a", ex.Name)
	assert.Equal(t, 5, ex.Count)
	assert.Equal(t, []int{3, 96, 96}, ex.Image.Shape())
	assert.Equal(t, float32(1), ex.Image.Floats()[0])
	require.Len(t, ex.Templates, 2)
	assert.Equal(t, []int{3, 63, 63}, ex.Templates[0].Shape())

	tmpl, err := ex.Template()
	require.NoError(t, err)
	// blauer Kanal der ersten Vorlage
	assert.Equal(t, float32(1), tmpl.Floats()[2*63*63])

	ex, err = d.Get(1)
	require.NoError(t, err)
	assert.Equal(t, UnknownCount, ex.Count)
	_, err = ex.Template()
	require.ErrorIs(t, err, ErrNoTemplates)

	_, err = d.Get(2)
	require.ErrorIs(t, err, ErrIndex)

	_, err = Open(FolderName, root, Options{Train: true})
	require.Error(t, err)
}

func TestFolderKeepsSizeWithoutResize(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "train", "images", "x.png"), 17, 11, color.White)

	d, err := OpenFolder(root, Options{Train: true})
	require.NoError(t, err)

	ex, err := d.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 11, 17}, ex.Image.Shape())
	assert.Empty(t, ex.Templates)
}

func TestSyntheticIsDeterministic(t *testing.T) {
	opts := DefaultOptions()
	opts.Seed = 4

	a, err := Open(SyntheticName, "", opts)
	require.NoError(t, err)
	b, err := Open(SyntheticName, "", opts)
	require.NoError(t, err)
	require.Equal(t, syntheticLength, a.Len())

	x, err := a.Get(3)
	require.NoError(t, err)
	y, err := b.Get(3)
	require.NoError(t, err)

	assert.True(t, x.Image.Equal(y.Image))
	assert.Equal(t, x.Count, y.Count)
	assert.GreaterOrEqual(t, x.Count, 1)
	assert.LessOrEqual(t, x.Count, syntheticMaxCount)
	assert.Equal(t, []int{3, 96, 96}, x.Image.Shape())
	require.Len(t, x.Templates, 1)
	assert.Equal(t, []int{3, 63, 63}, x.Templates[0].Shape())

	opts.Train = true
	train, err := NewSynthetic(opts)
	require.NoError(t, err)
	z, err := train.Get(3)
	require.NoError(t, err)
	assert.False(t, x.Image.Equal(z.Image))

	_, err = a.Get(-1)
	require.ErrorIs(t, err, ErrIndex)

	_, err = NewSynthetic(Options{ImageShape: 4})
	require.Error(t, err)
}
