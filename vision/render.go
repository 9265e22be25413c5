// MODUL: render
// ZWECK: Gegenueberstellung von Original und Rekonstruktion als PNG
// INPUT: zwei Bild-Tensoren (C×H×W, Werte in [0,1]) und ein Titel
// OUTPUT: *image.RGBA bzw. PNG-Datei
// NEBENEFFEKTE: Dateisystem-Schreibzugriff bei SavePNG
// ABHAENGIGKEITEN: golang.org/x/image/draw, font, font/basicfont, math/fixed
// HINWEISE: Panels werden ganzzahlig mit Nearest hochskaliert, Beschriftung in 7x13

package vision

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/7blacky7/gmncount/ml"
)

// Beschriftungen der beiden Panels
const (
	CaptionOriginal = "Original image"
	CaptionDecoded  = "Decoded"
)

const (
	renderMargin    = 16
	renderMinPanel  = 256
	renderLineSpace = 6
)

// panelScale liefert den ganzzahligen Faktor, mit dem die laengere Seite
// mindestens renderMinPanel Pixel erreicht.
func panelScale(w, h int) int {
	return max(1, (renderMinPanel+max(w, h)-1)/max(w, h))
}

// RenderComparison zeichnet original (links) und decoded (rechts) nebeneinander,
// jeweils mit Beschriftung, und setzt title darueber.
func RenderComparison(original, decoded *ml.Tensor, title string) (*image.RGBA, error) {
	left, err := FromTensor(original)
	if err != nil {
		return nil, fmt.Errorf("original: %w", err)
	}
	right, err := FromTensor(decoded)
	if err != nil {
		return nil, fmt.Errorf("decoded: %w", err)
	}

	panels := []struct {
		img     *ImageInput
		caption string
	}{
		{left, CaptionOriginal},
		{right, CaptionDecoded},
	}

	face := basicfont.Face7x13
	lineH := face.Metrics().Height.Ceil()

	width, panelH := renderMargin, 0
	sizes := make([]image.Point, len(panels))
	for i, p := range panels {
		s := panelScale(p.img.Width, p.img.Height)
		sizes[i] = image.Pt(p.img.Width*s, p.img.Height*s)
		width += sizes[i].X + renderMargin
		panelH = max(panelH, sizes[i].Y)
	}
	width = max(width, font.MeasureString(face, title).Ceil()+2*renderMargin)

	titleY := renderMargin + lineH
	captionY := titleY + renderLineSpace + lineH
	panelY := captionY + renderLineSpace
	height := panelY + panelH + renderMargin

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	drawCentered(dst, face, title, 0, width, titleY)

	x := renderMargin
	for i, p := range panels {
		r := image.Rectangle{Min: image.Pt(x, panelY), Max: image.Pt(x, panelY).Add(sizes[i])}
		draw.NearestNeighbor.Scale(dst, r, p.img.Image, p.img.Image.Bounds(), draw.Src, nil)
		drawCentered(dst, face, p.caption, x, x+sizes[i].X, captionY)
		x += sizes[i].X + renderMargin
	}

	return dst, nil
}

// drawCentered setzt s horizontal zentriert zwischen x0 und x1 auf die Grundlinie y
func drawCentered(dst draw.Image, face font.Face, s string, x0, x1, y int) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(color.Black), Face: face}
	w := d.MeasureString(s).Ceil()
	d.Dot = fixed.P(x0+max(0, (x1-x0-w)/2), y)
	d.DrawString(s)
}

// EncodePNG schreibt img als PNG nach w
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// SavePNG schreibt img als PNG-Datei nach path
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("datei anlegen fehlgeschlagen: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := EncodePNG(bw, img); err != nil {
		return fmt.Errorf("png kodieren fehlgeschlagen: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}
