// MODUL: normalize
// ZWECK: Umwandlung zwischen Bildern und CHW-Tensoren im Bereich [0,1]
// INPUT: ImageInput bzw. ml.Tensor (C×H×W oder 1×C×H×W)
// OUTPUT: ml.Tensor bzw. ImageInput
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: gmncount/ml (Layout-Umwandlung ueber pdevine/tensor)
// HINWEISE: Entspricht torchvision ToTensor, Rueckweg klemmt auf [0,1] wie imshow

package vision

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/7blacky7/gmncount/ml"
)

// Standard-Normalisierungswerte
var (
	// ImageNet Default (ResNet-Backbone des Siamese-Zaehlers)
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}

	// Keine Normalisierung (nur Skalierung auf [0,1])
	NoNormMean = [3]float32{0.0, 0.0, 0.0}
	NoNormStd  = [3]float32{1.0, 1.0, 1.0}
)

// extractRGB holt RGB-Werte als float32 im Bereich [0,1]
func extractRGB(img *ImageInput, x, y int) (float32, float32, float32) {
	c := img.Image.RGBAAt(x, y)
	return float32(c.R) / 255.0, float32(c.G) / 255.0, float32(c.B) / 255.0
}

// ToFloat32Tensor konvertiert ein Bild zu einem float32-Slice im HWC Format
// Werte werden auf [0,1] skaliert ohne Normalisierung
func ToFloat32Tensor(img *ImageInput) []float32 {
	bounds := img.Image.Bounds()
	result := make([]float32, 0, bounds.Dx()*bounds.Dy()*3)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := extractRGB(img, x, y)
			result = append(result, r, g, b)
		}
	}

	return result
}

// ToTensor liefert das Bild als 3×H×W Tensor mit Werten in [0,1]
func ToTensor(img *ImageInput) (*ml.Tensor, error) {
	t, err := ml.FromHWC(ToFloat32Tensor(img), img.Height, img.Width, 3)
	if err != nil {
		return nil, err
	}
	return t.Reshape(3, img.Height, img.Width)
}

// Normalize wendet (x - mean) / std kanalweise auf einen 3×H×W Tensor an
func Normalize(t *ml.Tensor, mean, std [3]float32) (*ml.Tensor, error) {
	if t.Rank() != 3 || t.Dim(0) != 3 {
		return nil, &ml.ShapeError{Op: "normalize", Want: []int{3, -1, -1}, Got: t.Shape()}
	}

	out := t.Clone()
	plane := t.Dim(1) * t.Dim(2)
	data := out.Floats()
	for c := range 3 {
		for i := c * plane; i < (c+1)*plane; i++ {
			data[i] = (data[i] - mean[c]) / std[c]
		}
	}
	return out, nil
}

// FromTensor wandelt einen C×H×W (oder 1×C×H×W) Tensor mit C ∈ {1,3} in ein
// Bild. Werte ausserhalb von [0,1] werden geklemmt, ein Kanal ergibt Graustufen.
func FromTensor(t *ml.Tensor) (*ImageInput, error) {
	shape := t.Shape()
	if len(shape) == 4 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 3 || (shape[0] != 1 && shape[0] != 3) {
		return nil, &ml.ShapeError{Op: "from_tensor", Want: []int{3, -1, -1}, Got: t.Shape()}
	}

	c, h, w := shape[0], shape[1], shape[2]
	flat, err := t.Reshape(c, h, w)
	if err != nil {
		return nil, err
	}
	hwc, err := ml.ToHWC(flat)
	if err != nil {
		return nil, fmt.Errorf("from_tensor: %w", err)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range h * w {
		px := hwc[i*c : (i+1)*c]
		r, g, b := toByte(px[0]), toByte(px[0]), toByte(px[0])
		if c == 3 {
			g, b = toByte(px[1]), toByte(px[2])
		}
		rgba.SetRGBA(i%w, i/w, color.RGBA{R: r, G: g, B: b, A: 255})
	}

	return &ImageInput{Image: rgba, Width: w, Height: h, Format: FormatPNG}, nil
}

func toByte(v float32) uint8 {
	if math.IsNaN(float64(v)) {
		return 0
	}
	return uint8(math.Round(float64(min(max(v, 0), 1)) * 255))
}

// ResizeTensor skaliert einen C×H×W Bild-Tensor (C ∈ {1,3}) auf height×width.
// Die Werte werden dabei auf 8 Bit quantisiert.
func ResizeTensor(t *ml.Tensor, height, width int, sampling Sampling) (*ml.Tensor, error) {
	img, err := FromTensor(t)
	if err != nil {
		return nil, err
	}
	resized, err := Resize(img, width, height, sampling)
	if err != nil {
		return nil, err
	}
	out, err := ToTensor(resized)
	if err != nil {
		return nil, err
	}

	if t.Dim(t.Rank()-3) == 1 {
		batched, err := out.Reshape(1, 3, height, width)
		if err != nil {
			return nil, err
		}
		if out, err = batched.SelectChannel(0); err != nil {
			return nil, err
		}
		return out.Reshape(1, height, width)
	}
	return out, nil
}
