// cmd_validate.go - Validate Command fuer die Farbkanal-VAEs
// Hauptfunktionen: ValidateHandler
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/7blacky7/gmncount/dataset"
	"github.com/7blacky7/gmncount/envconfig"
	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/validate"
)

// ValidateHandler - Rekonstruiert eine Vorlage mit den _r/_g/_b Modellen
func ValidateHandler(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	cfg := validate.DefaultConfig()

	var err error
	if cfg.Model, err = flags.GetString("vae-model"); err != nil {
		return err
	}
	if cfg.ModelRoot, err = flags.GetString("vae-root"); err != nil {
		return err
	}
	if cfg.Dataset, err = flags.GetString("dataset"); err != nil {
		return err
	}
	if cfg.DataPath, err = flags.GetString("data-path"); err != nil {
		return err
	}
	if cfg.ImageShape, err = flags.GetInt("image-shape"); err != nil {
		return err
	}
	if cfg.CPU, err = flags.GetBool("cpu"); err != nil {
		return err
	}
	if cfg.Index, err = flags.GetInt("index"); err != nil {
		return err
	}
	if cfg.Seed, err = flags.GetUint64("seed"); err != nil {
		return err
	}
	if cfg.Output, err = flags.GetString("output"); err != nil {
		return err
	}
	cfg.Workers = int(envconfig.NumThreads())

	if cfg.Device, err = ml.ParseDevice(envconfig.Device()); err != nil {
		return err
	}

	res, err := validate.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: example %d (%s), mse %.5f, written to %s\n", res.Model, res.Index, res.Example, res.MSE, res.Output)
	return nil
}

// newValidateCmd - Erstellt den validate Command
func newValidateCmd() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Render the reconstruction of a colour template by per-channel VAEs",
		Args:  cobra.NoArgs,
		RunE:  ValidateHandler,
	}

	vaeNames := strings.Join(validate.Autoencoders(), ", ")
	validateCmd.Flags().StringP("vae-model", "v", "ConvVAE", "VAE model to validate ("+vaeNames+")")
	validateCmd.Flags().String("vae-root", envconfig.Models(), "Path to root folder where pretrained VAE weights are located")
	validateCmd.Flags().StringP("dataset", "d", dataset.FolderName, "Dataset to draw the template from ("+strings.Join(dataset.Names(), ", ")+")")
	validateCmd.Flags().String("data-path", envconfig.Data(), "Path to the dataset root")
	validateCmd.Flags().Int("image-shape", 96, "Side length images are resized to")
	validateCmd.Flags().Bool("cpu", false, "Force computation on the CPU")
	validateCmd.Flags().Int("index", -1, "Example index, negative picks one at random")
	validateCmd.Flags().Uint64("seed", envconfig.Seed(), "Random seed, 0 for nondeterministic")
	validateCmd.Flags().StringP("output", "o", "validate.png", "Output PNG path")

	return validateCmd
}
