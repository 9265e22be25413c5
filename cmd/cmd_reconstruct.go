// cmd_reconstruct.go - Reconstruct Command fuer ein einzelnes VAE
// Hauptfunktionen: ReconstructHandler, loadImageTensor
package cmd

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/7blacky7/gmncount/checkpoint"
	"github.com/7blacky7/gmncount/envconfig"
	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/model"
	"github.com/7blacky7/gmncount/model/models/convvae"
	"github.com/7blacky7/gmncount/validate"
	"github.com/7blacky7/gmncount/vision"
)

type reconstructor interface {
	validate.Autoencoder
	Reconstruct(x *ml.Tensor) (*ml.Tensor, error)
}

// loadImageTensor - Laedt ein Bild als 1×3×size×size Tensor in [0,1]
func loadImageTensor(path string, size int, sampling vision.Sampling) (*ml.Tensor, error) {
	img, err := vision.LoadImage(path)
	if err != nil {
		return nil, err
	}
	if img, err = vision.Resize(img, size, size, sampling); err != nil {
		return nil, err
	}
	x, err := vision.ToTensor(img)
	if err != nil {
		return nil, err
	}
	return x.Reshape(1, 3, size, size)
}

// ReconstructHandler - Kodiert und dekodiert ein Bild mit einem VAE
func ReconstructHandler(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	name, err := flags.GetString("vae-model")
	if err != nil {
		return err
	}
	weights, err := flags.GetString("checkpoint")
	if err != nil {
		return err
	}
	channels, err := flags.GetInt("channels")
	if err != nil {
		return err
	}
	channel, err := flags.GetString("channel")
	if err != nil {
		return err
	}
	sample, err := flags.GetBool("sample")
	if err != nil {
		return err
	}
	seed, err := flags.GetUint64("seed")
	if err != nil {
		return err
	}
	output, err := flags.GetString("output")
	if err != nil {
		return err
	}
	export, err := flags.GetString("export")
	if err != nil {
		return err
	}
	dump, err := flags.GetBool("dump")
	if err != nil {
		return err
	}
	dumpThreshold, err := flags.GetInt("dump-threshold")
	if err != nil {
		return err
	}

	if channels != 1 && channels != 3 {
		return fmt.Errorf("%w: reconstruct supports 1 or 3 channels, got %d", model.ErrInvalidChannels, channels)
	}

	m, err := model.New(name, model.WithChannels(channels), model.WithSeed(seed), model.WithDevice(ml.DeviceCPU))
	if err != nil {
		return err
	}
	vae, ok := m.(reconstructor)
	if !ok {
		return fmt.Errorf("%w: %s", validate.ErrNotAutoencoder, m.Name())
	}

	if weights != "" {
		if err := model.LoadFile(vae, weights); err != nil {
			return err
		}
	}

	x, err := loadImageTensor(args[0], convvae.InputSize, vision.Nearest)
	if err != nil {
		return err
	}
	if channels == 1 {
		c := slices.Index(checkpoint.Channels, channel)
		if c < 0 {
			return errors.New("--channel must be one of r, g, b")
		}
		if x, err = x.SelectChannel(c); err != nil {
			return err
		}
	}

	var decoded *ml.Tensor
	if sample {
		decoded, _, _, err = vae.Forward(x)
	} else {
		decoded, err = vae.Reconstruct(x)
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	mse, err := x.MeanSquaredError(decoded)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: mse %.5f\n", m.Name(), mse)

	if dump {
		fmt.Fprintln(w, ml.Dump(decoded, ml.DumpWithPrecision(3), ml.DumpWithThreshold(dumpThreshold), ml.DumpWithEdgeItems(2)))
	}

	if output != "" {
		img, err := vision.RenderComparison(x, decoded, m.Name())
		if err != nil {
			return err
		}
		if err := vision.SavePNG(output, img); err != nil {
			return err
		}
		fmt.Fprintf(w, "comparison written to %s\n", output)
	}

	if export != "" {
		if err := model.SaveFile(vae, export); err != nil {
			return err
		}
		fmt.Fprintf(w, "weights exported to %s\n", export)
	}
	return nil
}

// newReconstructCmd - Erstellt den reconstruct Command
func newReconstructCmd() *cobra.Command {
	reconstructCmd := &cobra.Command{
		Use:   "reconstruct IMAGE",
		Short: "Reconstruct an image with a single VAE",
		Args:  cobra.ExactArgs(1),
		RunE:  ReconstructHandler,
	}

	reconstructCmd.Flags().StringP("vae-model", "v", "ConvVAE", "VAE model class or alias")
	reconstructCmd.Flags().StringP("checkpoint", "m", "", "Checkpoint to load (.pt, .pth, .bin, .safetensors), empty for untrained weights")
	reconstructCmd.Flags().IntP("channels", "c", 3, "Model channels: 3 for RGB, 1 for a single colour channel")
	reconstructCmd.Flags().String("channel", checkpoint.ChannelRed, "Colour channel fed to a single-channel model (r, g, b)")
	reconstructCmd.Flags().Bool("sample", false, "Decode a sampled latent instead of the mean")
	reconstructCmd.Flags().Uint64("seed", envconfig.Seed(), "Random seed, 0 for nondeterministic")
	reconstructCmd.Flags().StringP("output", "o", "reconstruct.png", "Output PNG path, empty to skip rendering")
	reconstructCmd.Flags().String("export", "", "Write the loaded weights as safetensors to this path")
	reconstructCmd.Flags().Bool("dump", false, "Print the decoded tensor")
	reconstructCmd.Flags().Int("dump-threshold", 1000, "Print every element when the decoded tensor has at most this many")

	return reconstructCmd
}
