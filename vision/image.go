// MODUL: image
// ZWECK: Bild-Lade- und Verarbeitungsfunktionen fuer Zaehl-Datensaetze und Validierung
// INPUT: Dateipfad, Bytes oder io.Reader
// OUTPUT: ImageInput Struktur mit dekodiertem Bild
// NEBENEFFEKTE: Dateisystem-Lesezugriff bei LoadImage
// ABHAENGIGKEITEN: golang.org/x/image/draw, webp, bmp (extern), image/jpeg, image/png
// HINWEISE: Alle Bilder werden als deckendes RGBA konvertiert, Resize mit Nearest oder Bilinear

package vision

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	// Standard-Decoder registrieren
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ImageInput enthaelt ein dekodiertes Bild mit Metadaten
type ImageInput struct {
	Image  *image.RGBA
	Width  int
	Height int
	Format ImageFormat
}

// Sampling waehlt das Interpolationsverfahren beim Skalieren
type Sampling int

const (
	// Nearest entspricht torchvision Resize mit InterpolationMode.NEAREST
	Nearest Sampling = iota
	Bilinear
)

func (s Sampling) String() string {
	switch s {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	default:
		return fmt.Sprintf("sampling(%d)", int(s))
	}
}

func (s Sampling) scaler() draw.Scaler {
	if s == Bilinear {
		return draw.BiLinear
	}
	return draw.NearestNeighbor
}

// LoadImage laedt ein Bild von einem Dateipfad
func LoadImage(path string) (*ImageInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("datei lesen fehlgeschlagen: %w", err)
	}
	defer f.Close()

	img, err := DecodeImage(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// LoadImageFromBytes dekodiert ein Bild aus Byte-Daten
func LoadImageFromBytes(data []byte) (*ImageInput, error) {
	format := DetectFormat(data)
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}

	return decodeWithFormat(bytes.NewReader(data), format)
}

// DecodeImage dekodiert ein Bild aus einem io.Reader
func DecodeImage(reader io.Reader) (*ImageInput, error) {
	// Erst Daten puffern fuer Format-Erkennung
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("daten lesen fehlgeschlagen: %w", err)
	}
	return LoadImageFromBytes(data)
}

// decodeWithFormat dekodiert und konvertiert zu RGBA. Transparente Bereiche
// werden auf weissen Hintergrund gelegt.
func decodeWithFormat(reader io.Reader, format ImageFormat) (*ImageInput, error) {
	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("bild dekodieren fehlgeschlagen: %w", err)
	}

	in := FromImage(img, format)
	if !in.Image.Opaque() {
		in = Composite(in)
	}
	return in, nil
}

// FromImage verpackt ein beliebiges image.Image als ImageInput
func FromImage(img image.Image, format ImageFormat) *ImageInput {
	rgba := toRGBA(img)
	bounds := rgba.Bounds()

	return &ImageInput{
		Image:  rgba,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
	}
}

// toRGBA konvertiert ein beliebiges image.Image zu *image.RGBA mit Ursprung (0,0)
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// Resize skaliert ein Bild mit dem gewaehlten Verfahren
func Resize(img *ImageInput, width, height int, sampling Sampling) (*ImageInput, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ungueltige Groesse: %dx%d", width, height)
	}

	if width == img.Width && height == img.Height {
		return img, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	sampling.scaler().Scale(dst, dst.Bounds(), img.Image, img.Image.Bounds(), draw.Src, nil)

	return &ImageInput{
		Image:  dst,
		Width:  width,
		Height: height,
		Format: img.Format,
	}, nil
}

// Composite entfernt Alpha-Kanal durch weissen Hintergrund
func Composite(img *ImageInput) *ImageInput {
	return CompositeWithColor(img, color.White)
}

// CompositeWithColor entfernt Alpha-Kanal mit gegebener Hintergrundfarbe
func CompositeWithColor(img *ImageInput, bgColor color.Color) *ImageInput {
	bounds := img.Image.Bounds()
	dst := image.NewRGBA(bounds)

	draw.Draw(dst, bounds, &image.Uniform{bgColor}, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img.Image, bounds.Min, draw.Over)

	return &ImageInput{
		Image:  dst,
		Width:  img.Width,
		Height: img.Height,
		Format: img.Format,
	}
}

// Crop schneidet das Rechteck r aus, r muss vollstaendig im Bild liegen
func Crop(img *ImageInput, r image.Rectangle) (*ImageInput, error) {
	if r.Empty() || !r.In(img.Image.Bounds()) {
		return nil, fmt.Errorf("crop %v liegt nicht im bild %v", r, img.Image.Bounds())
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img.Image, r.Min, draw.Src)

	return &ImageInput{
		Image:  dst,
		Width:  r.Dx(),
		Height: r.Dy(),
		Format: img.Format,
	}, nil
}
