// MODUL: image_test
// ZWECK: Tests fuer Bild-Lade- und Verarbeitungsfunktionen
// INPUT: Synthetische Bilder und PNG-Bytes
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, image, image/png, bytes
// HINWEISE: Testet Resize (Nearest/Bilinear), Crop, Composite und Transparenz beim Laden

package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// createPNGBytes erzeugt PNG-Bytes aus einem Testbild
func createPNGBytes(w, h int, c color.Color) []byte {
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, rgba)
	return buf.Bytes()
}

func TestLoadImageFromBytes(t *testing.T) {
	pngData := createPNGBytes(100, 50, color.RGBA{255, 0, 0, 255})

	img, err := LoadImageFromBytes(pngData)
	if err != nil {
		t.Fatalf("LoadImageFromBytes() error = %v", err)
	}

	if img.Width != 100 || img.Height != 50 {
		t.Errorf("Groesse = %dx%d, erwartet 100x50", img.Width, img.Height)
	}

	if img.Format != FormatPNG {
		t.Errorf("Format = %v, erwartet %v", img.Format, FormatPNG)
	}
}

func TestLoadImageFromBytesInvalid(t *testing.T) {
	invalidData := []byte{0x00, 0x00, 0x00, 0x00}

	_, err := LoadImageFromBytes(invalidData)
	if err == nil {
		t.Error("Erwartet Fehler bei ungueltigem Format")
	}
}

func TestDecodeImage(t *testing.T) {
	pngData := createPNGBytes(80, 60, color.White)
	reader := bytes.NewReader(pngData)

	img, err := DecodeImage(reader)
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}

	if img.Width != 80 || img.Height != 60 {
		t.Errorf("Groesse = %dx%d, erwartet 80x60", img.Width, img.Height)
	}
}

func TestResizeBilinear(t *testing.T) {
	pngData := createPNGBytes(100, 100, color.White)
	img, _ := LoadImageFromBytes(pngData)

	resized, err := Resize(img, 50, 50, Bilinear)
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}

	if resized.Width != 50 || resized.Height != 50 {
		t.Errorf("Groesse = %dx%d, erwartet 50x50", resized.Width, resized.Height)
	}
}

func TestResizeInvalidSize(t *testing.T) {
	pngData := createPNGBytes(100, 100, color.White)
	img, _ := LoadImageFromBytes(pngData)

	_, err := Resize(img, 0, 50, Bilinear)
	if err == nil {
		t.Error("Erwartet Fehler bei Breite 0")
	}

	_, err = Resize(img, 50, -1, Nearest)
	if err == nil {
		t.Error("Erwartet Fehler bei negativer Hoehe")
	}
}

func TestComposite(t *testing.T) {
	// Transparentes Bild
	rgba := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			rgba.Set(x, y, color.RGBA{255, 0, 0, 128}) // Halbtransparentes Rot
		}
	}

	img := &ImageInput{Image: rgba, Width: 10, Height: 10, Format: FormatPNG}
	composited := Composite(img)

	// Nach Composite sollte Alpha 255 sein
	r, g, b, a := composited.Image.At(5, 5).RGBA()
	if a>>8 != 255 {
		t.Errorf("Alpha = %d, erwartet 255", a>>8)
	}

	// Farbe sollte gemischt sein (rot + weiss)
	if r>>8 < 127 || r>>8 > 255 {
		t.Errorf("Rot = %d, erwartet zwischen 127 und 255", r>>8)
	}
	_ = g
	_ = b
}

func TestLoadImageFlattensTransparency(t *testing.T) {
	nrgba := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			nrgba.SetNRGBA(x, y, color.NRGBA{0, 0, 255, 255})
		}
	}
	nrgba.SetNRGBA(1, 2, color.NRGBA{255, 0, 0, 0})

	path := filepath.Join(t.TempDir(), "template.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, nrgba); err != nil {
		t.Fatal(err)
	}
	f.Close()

	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage() error = %v", err)
	}

	if !img.Image.Opaque() {
		t.Error("Bild sollte nach dem Laden deckend sein")
	}
	if got := img.Image.RGBAAt(1, 2); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("transparentes Pixel = %v, erwartet weiss", got)
	}
	if got := img.Image.RGBAAt(0, 0); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("deckendes Pixel = %v, erwartet blau", got)
	}
}

func TestResizeNearestKeepsPixelValues(t *testing.T) {
	// 2x1 Bild: links schwarz, rechts weiss
	rgba := image.NewRGBA(image.Rect(0, 0, 2, 1))
	rgba.Set(0, 0, color.Black)
	rgba.Set(1, 0, color.White)
	img := &ImageInput{Image: rgba, Width: 2, Height: 1, Format: FormatPNG}

	resized, err := Resize(img, 8, 4, Nearest)
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}

	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			got := resized.Image.RGBAAt(x, y).R
			want := uint8(0)
			if x >= 4 {
				want = 255
			}
			if got != want {
				t.Fatalf("Pixel (%d,%d) = %d, erwartet %d", x, y, got, want)
			}
		}
	}
}

func TestResizeSameSizeIsNoop(t *testing.T) {
	img := createTestImage(10, 10, color.White)

	resized, err := Resize(img, 10, 10, Bilinear)
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if resized != img {
		t.Error("Erwartet unveraendertes Bild bei gleicher Groesse")
	}
}

func TestCrop(t *testing.T) {
	img := createTestImage(20, 10, color.White)
	img.Image.Set(5, 3, color.Black)

	cropped, err := Crop(img, image.Rect(5, 3, 9, 7))
	if err != nil {
		t.Fatalf("Crop() error = %v", err)
	}
	if cropped.Width != 4 || cropped.Height != 4 {
		t.Errorf("Groesse = %dx%d, erwartet 4x4", cropped.Width, cropped.Height)
	}
	if cropped.Image.RGBAAt(0, 0).R != 0 {
		t.Error("Erwartet schwarzes Pixel in der oberen linken Ecke")
	}

	if _, err := Crop(img, image.Rect(18, 0, 22, 4)); err == nil {
		t.Error("Erwartet Fehler wenn Crop ausserhalb des Bildes liegt")
	}
}

func TestFromImageResetsOrigin(t *testing.T) {
	sub := image.NewRGBA(image.Rect(3, 4, 13, 9))
	img := FromImage(sub, FormatPNG)

	if img.Image.Bounds().Min != (image.Point{}) {
		t.Errorf("Ursprung = %v, erwartet (0,0)", img.Image.Bounds().Min)
	}
	if img.Width != 10 || img.Height != 5 {
		t.Errorf("Groesse = %dx%d, erwartet 10x5", img.Width, img.Height)
	}
}
