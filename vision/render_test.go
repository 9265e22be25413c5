package vision

import (
	"bytes"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7blacky7/gmncount/ml"
)

func TestRenderComparison(t *testing.T) {
	original := ml.Full(1, 3, 96, 96)
	// Rekonstruktion im tanh-Bereich, negative Werte werden schwarz
	decoded := ml.Full(-0.5, 1, 3, 96, 96)

	img, err := RenderComparison(original, decoded, "ConvVAEGMN, index 7")
	require.NoError(t, err)

	scale := panelScale(96, 96)
	require.Equal(t, 3, scale)
	b := img.Bounds()
	assert.Equal(t, 3*renderMargin+2*96*scale, b.Dx())

	// Pixel in der Mitte beider Panels
	y := b.Dy() - renderMargin - 96*scale/2
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(renderMargin+10, y))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(2*renderMargin+96*scale+10, y))

	// Beschriftung setzt dunkle Pixel oberhalb der Panels
	dark := 0
	for py := 0; py < b.Dy()-renderMargin-96*scale; py++ {
		for px := 0; px < b.Dx(); px++ {
			if img.RGBAAt(px, py).R < 128 {
				dark++
			}
		}
	}
	assert.Positive(t, dark)
}

func TestRenderComparisonRejectsBadShapes(t *testing.T) {
	_, err := RenderComparison(ml.Zeros(2, 3, 8, 8), ml.Zeros(3, 8, 8), "")
	require.ErrorIs(t, err, ml.ErrShapeMismatch)
}

func TestSavePNG(t *testing.T) {
	img, err := RenderComparison(ml.Full(0.5, 1, 8, 8), ml.Full(0.5, 1, 8, 8), "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, SavePNG(path, img))

	decoded, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, decoded.Format)
	assert.Equal(t, img.Bounds().Dx(), decoded.Width)

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, img))
	_, err = png.Decode(&buf)
	require.NoError(t, err)
}
