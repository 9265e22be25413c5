package dataset

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/exp/rand"
	"golang.org/x/image/draw"

	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/vision"
)

// Synthetic name in the dataset registry.
const SyntheticName = "synthetic"

const (
	syntheticLength   = 100
	syntheticSize     = 96
	syntheticMinSize  = 8
	syntheticMaxCount = 12

	// train and test splits draw from disjoint seeds
	syntheticTrainSalt = 0x9e3779b97f4a7c15
)

// Synthetic renders coloured discs on a plain background. Example i is a pure
// function of (seed, split, i), its count is the number of discs and its single
// template is a crop around the first disc.
type Synthetic struct {
	opts Options
}

func init() {
	Register(SyntheticName, func(_ string, opts Options) (Dataset, error) {
		return NewSynthetic(opts)
	})
}

func NewSynthetic(opts Options) (*Synthetic, error) {
	if opts.Length <= 0 {
		opts.Length = syntheticLength
	}
	if opts.ImageShape == 0 {
		opts.ImageShape = syntheticSize
	}
	if opts.ImageShape < syntheticMinSize {
		return nil, fmt.Errorf("dataset: synthetic images need at least %d pixels, got %d", syntheticMinSize, opts.ImageShape)
	}
	return &Synthetic{opts: opts}, nil
}

func (s *Synthetic) Len() int {
	return s.opts.Length
}

func (s *Synthetic) Get(i int) (Example, error) {
	if err := checkIndex(s, i); err != nil {
		return Example{}, err
	}

	seed := s.opts.Seed*1_000_003 + uint64(i)
	if s.opts.Train {
		seed ^= syntheticTrainSalt
	}
	rng := rand.New(rand.NewSource(seed))

	size := s.opts.ImageShape
	radius := max(2, size/16)
	count := 1 + rng.Intn(syntheticMaxCount)

	background := randomColor(rng, 0, 96)
	object := randomColor(rng, 128, 255)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	centers := make([]image.Point, count)
	for k := range centers {
		centers[k] = image.Pt(radius+rng.Intn(size-2*radius), radius+rng.Intn(size-2*radius))
		disc(dst, centers[k], radius, object)
	}

	img := vision.FromImage(dst, vision.FormatPNG)
	x, err := vision.ToTensor(img)
	if err != nil {
		return Example{}, err
	}

	// template: bounding square of the first disc plus a one pixel border
	c := centers[0]
	box := image.Rect(c.X-radius-1, c.Y-radius-1, c.X+radius+2, c.Y+radius+2).Intersect(dst.Bounds())
	tmpl, err := vision.Crop(img, box)
	if err != nil {
		return Example{}, err
	}
	if s.opts.TemplateSize > 0 {
		if tmpl, err = vision.Resize(tmpl, s.opts.TemplateSize, s.opts.TemplateSize, vision.Nearest); err != nil {
			return Example{}, err
		}
	}
	t, err := vision.ToTensor(tmpl)
	if err != nil {
		return Example{}, err
	}

	return Example{Name: fmt.Sprintf("%s-%s-%04d", SyntheticName, s.opts.Split(), i), Image: x, Templates: []*ml.Tensor{t}, Count: count}, nil
}

func randomColor(rng *rand.Rand, lo, hi int) color.RGBA {
	c := func() uint8 { return uint8(lo + rng.Intn(hi-lo+1)) }
	return color.RGBA{R: c(), G: c(), B: c(), A: 255}
}

// disc fills all pixels within radius of c.
func disc(dst *image.RGBA, c image.Point, radius int, col color.RGBA) {
	for y := c.Y - radius; y <= c.Y+radius; y++ {
		for x := c.X - radius; x <= c.X+radius; x++ {
			dx, dy := x-c.X, y-c.Y
			if dx*dx+dy*dy <= radius*radius && image.Pt(x, y).In(dst.Bounds()) {
				dst.SetRGBA(x, y, col)
			}
		}
	}
}
