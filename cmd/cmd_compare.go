// cmd_compare.go - Compare Command fuer den Siamese-Zaehler
// Hauptfunktionen: CompareHandler
package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/7blacky7/gmncount/envconfig"
	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/model"
	"github.com/7blacky7/gmncount/model/models/siamese"
	"github.com/7blacky7/gmncount/vision"
)

// loadNormalized - Laedt ein Bild und normalisiert es mit ImageNet-Werten
func loadNormalized(path string, size int) (*ml.Tensor, error) {
	x, err := loadImageTensor(path, size, vision.Bilinear)
	if err != nil {
		return nil, err
	}
	chw, err := x.Reshape(3, size, size)
	if err != nil {
		return nil, err
	}
	if chw, err = vision.Normalize(chw, vision.ImageNetMean, vision.ImageNetStd); err != nil {
		return nil, err
	}
	return chw.Reshape(1, 3, size, size)
}

// CompareHandler - Bewertet ein Bild gegen eine Vorlage
func CompareHandler(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	backbone, err := flags.GetString("backbone")
	if err != nil {
		return err
	}
	weights, err := flags.GetString("checkpoint")
	if err != nil {
		return err
	}
	outputSize, err := flags.GetInt("output-size")
	if err != nil {
		return err
	}
	imageShape, err := flags.GetInt("image-shape")
	if err != nil {
		return err
	}
	templateShape, err := flags.GetInt("template-shape")
	if err != nil {
		return err
	}
	seed, err := flags.GetUint64("seed")
	if err != nil {
		return err
	}

	m, err := model.New(siamese.Name,
		model.WithOutputSize(outputSize),
		model.WithBackboneWeights(backbone),
		model.WithSeed(seed),
	)
	if err != nil {
		return err
	}
	if weights != "" {
		if err := model.LoadFile(m, weights); err != nil {
			return err
		}
	}

	x, err := loadNormalized(args[0], imageShape)
	if err != nil {
		return err
	}
	xObject, err := loadNormalized(args[1], templateShape)
	if err != nil {
		return err
	}

	y, err := m.(*siamese.Model).Forward(x, xObject)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	table := newTable(w, []string{"OUTPUT", "VALUE"})
	var sum float64
	for i, v := range y.Floats() {
		sum += float64(v)
		table.Append([]string{strconv.Itoa(i), strconv.FormatFloat(float64(v), 'f', 4, 32)})
	}
	table.Render()
	fmt.Fprintf(w, "\nsum %.4f\n", sum)
	return nil
}

// newCompareCmd - Erstellt den compare Command
func newCompareCmd() *cobra.Command {
	compareCmd := &cobra.Command{
		Use:   "compare IMAGE TEMPLATE",
		Short: "Score an image against an object template with the Siamese counter",
		Args:  cobra.ExactArgs(2),
		RunE:  CompareHandler,
	}

	compareCmd.Flags().String("backbone", "", "Pretrained ResNet-50 weights (torchvision or SiameseResNet checkpoint)")
	compareCmd.Flags().StringP("checkpoint", "m", "", "Full SiameseResNet checkpoint")
	compareCmd.Flags().Int("output-size", 10, "Width of the output layer")
	compareCmd.Flags().Int("image-shape", 96, "Side length the image is resized to")
	compareCmd.Flags().Int("template-shape", 63, "Side length the template is resized to")
	compareCmd.Flags().Uint64("seed", envconfig.Seed(), "Random seed for untrained layers")

	return compareCmd
}
