// Package validate renders how well the per-channel VAEs reconstruct a colour
// exemplar. Three single-channel models (<Model>_r, _g, _b) each decode one
// channel of a template; the decoded channels are merged back into a colour
// image and drawn next to the original.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/7blacky7/gmncount/checkpoint"
	"github.com/7blacky7/gmncount/dataset"
	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/model"
	"github.com/7blacky7/gmncount/model/models/convvae"
	"github.com/7blacky7/gmncount/vision"
)

var ErrNotAutoencoder = errors.New("validate: model is not a variational autoencoder")

// Autoencoder is a single-channel VAE: Forward samples a latent code and
// decodes it.
type Autoencoder interface {
	model.Model
	Forward(x *ml.Tensor) (decoded, mu, logvar *ml.Tensor, err error)
}

// Autoencoders lists the registered model names LoadChannelModels accepts.
func Autoencoders() []string {
	return model.NamesOf(model.KindAutoencoder)
}

// ChannelModels holds one model per colour channel in r, g, b order.
type ChannelModels [3]Autoencoder

// LoadChannelModels constructs three single-channel models named modelName
// (a class name or alias) and loads <root>/<class>_{r,g,b}.<ext> into them
// concurrently. A failure of any channel fails the call.
func LoadChannelModels(ctx context.Context, root, modelName string, opts ...model.Option) (ChannelModels, error) {
	var models ChannelModels

	name, err := model.Canonical(modelName)
	if err != nil {
		return models, err
	}
	if kind, _ := model.KindOf(name); kind != model.KindAutoencoder {
		return models, fmt.Errorf("%w: %s", ErrNotAutoencoder, name)
	}

	g, ctx := errgroup.WithContext(ctx)
	for c, channel := range checkpoint.Channels {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			o := append(append([]model.Option{}, opts...), model.WithChannels(1), channelSeed(opts, c))
			m, err := model.New(name, o...)
			if err != nil {
				return err
			}
			vae, ok := m.(Autoencoder)
			if !ok {
				return fmt.Errorf("%w: %s", ErrNotAutoencoder, name)
			}

			path, err := checkpoint.ChannelPath(root, name, channel)
			if err != nil {
				return err
			}
			if err := model.LoadFile(vae, path); err != nil {
				return err
			}

			models[c] = vae
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return ChannelModels{}, err
	}
	return models, nil
}

// channelSeed offsets a non-zero seed per channel so the three models draw
// independent noise.
func channelSeed(opts []model.Option, channel int) model.Option {
	o := model.DefaultOptions()
	o.Apply(opts...)
	if o.Seed == 0 {
		return model.WithSeed(0)
	}
	return model.WithSeed(o.Seed + uint64(channel))
}

// ReconstructColors splits a 3×H×W (or 1×3×H×W) image into channels, runs
// every channel through its model and concatenates the decoded channels into
// a 1×3×H×W tensor. workers bounds the number of concurrent passes, values
// below one mean unbounded.
func ReconstructColors(ctx context.Context, models ChannelModels, img *ml.Tensor, workers int) (*ml.Tensor, error) {
	if img.Rank() == 3 {
		var err error
		if img, err = img.Reshape(1, img.Dim(0), img.Dim(1), img.Dim(2)); err != nil {
			return nil, err
		}
	}
	if img.Rank() != 4 || img.Dim(0) != 1 || img.Dim(1) != len(models) {
		return nil, &ml.ShapeError{Op: "reconstruct_colors", Want: []int{1, len(models), -1, -1}, Got: img.Shape()}
	}

	var decoded [3]*ml.Tensor
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for c, m := range models {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			x, err := img.SelectChannel(c)
			if err != nil {
				return err
			}

			start := time.Now()
			y, _, _, err := m.Forward(x)
			if err != nil {
				return fmt.Errorf("channel %s: %w", checkpoint.Channels[c], err)
			}
			slog.Debug("decoded channel", "channel", checkpoint.Channels[c], "duration", time.Since(start))
			decoded[c] = y
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ml.Concat(1, decoded[:]...)
}

// Config selects the model, dataset and output of a validation run.
type Config struct {
	Model     string
	ModelRoot string
	Dataset   string
	DataPath  string
	// ImageShape is the side length dataset images are resized to.
	ImageShape int
	Device     ml.Device
	CPU        bool
	// Index selects the example, a negative value picks one at random.
	Index   int
	Seed    uint64
	Output  string
	Workers int
}

// DefaultConfig mirrors the defaults of the validation command.
func DefaultConfig() Config {
	return Config{
		Model:      "ConvVAE",
		ModelRoot:  "../trained_models/",
		Dataset:    dataset.FolderName,
		DataPath:   "./data",
		ImageShape: 96,
		Device:     ml.DeviceCUDA,
		Index:      -1,
		Output:     "validate.png",
	}
}

// Result describes a finished run.
type Result struct {
	Model    string
	Index    int
	Example  string
	Original *ml.Tensor
	Decoded  *ml.Tensor
	// MSE is the mean squared error between template and reconstruction.
	MSE    float64
	Output string
}

// Run loads the channel models, picks an example from the test split,
// reconstructs its first template and writes the comparison to cfg.Output.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	name, err := model.Canonical(cfg.Model)
	if err != nil {
		return nil, err
	}

	device := ml.SelectDevice(cfg.Device, cfg.CPU)
	slog.Info("validating", "model", name, "dataset", cfg.Dataset, "device", device)

	ds, err := dataset.Open(cfg.Dataset, cfg.DataPath, dataset.Options{
		ImageShape:   cfg.ImageShape,
		TemplateSize: convvae.InputSize,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("validate: dataset %q is empty", cfg.Dataset)
	}

	models, err := LoadChannelModels(ctx, cfg.ModelRoot, name, model.WithDevice(device), model.WithSeed(cfg.Seed))
	if err != nil {
		return nil, err
	}

	index := cfg.Index
	if index < 0 {
		index = pickIndex(cfg.Seed, ds.Len())
	}
	ex, err := ds.Get(index)
	if err != nil {
		return nil, err
	}

	template, err := ex.Template()
	if err != nil {
		return nil, err
	}
	if template.Dim(1) != convvae.InputSize || template.Dim(2) != convvae.InputSize {
		if template, err = vision.ResizeTensor(template, convvae.InputSize, convvae.InputSize, vision.Nearest); err != nil {
			return nil, err
		}
	}

	decoded, err := ReconstructColors(ctx, models, template, cfg.Workers)
	if err != nil {
		return nil, err
	}

	original, err := template.Reshape(decoded.Shape()...)
	if err != nil {
		return nil, err
	}
	mse, err := original.MeanSquaredError(decoded)
	if err != nil {
		return nil, err
	}

	res := &Result{Model: name, Index: index, Example: ex.Name, Original: original, Decoded: decoded, MSE: mse, Output: cfg.Output}
	if cfg.Output != "" {
		img, err := vision.RenderComparison(original, decoded, name)
		if err != nil {
			return nil, err
		}
		if err := vision.SavePNG(cfg.Output, img); err != nil {
			return nil, err
		}
	}

	slog.Info("validation finished", "model", name, "index", index, "example", ex.Name, "mse", mse, "output", cfg.Output)
	return res, nil
}

// pickIndex draws uniformly from [0, n). A zero seed uses the clock.
func pickIndex(seed uint64, n int) int {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewSource(seed)).Intn(n)
}
