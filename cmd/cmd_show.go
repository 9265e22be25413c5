// cmd_show.go - Show Command und Groessen-Fahrplan Anzeige
// Hauptfunktionen: ShowHandler, showSchedule, showResNet
package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/7blacky7/gmncount/model"
	"github.com/7blacky7/gmncount/model/models/convvae"
	"github.com/7blacky7/gmncount/model/models/siamese"
)

// ShowHandler - Zeigt die Stufen eines registrierten Modells an
func ShowHandler(cmd *cobra.Command, args []string) error {
	name, err := model.Canonical(args[0])
	if err != nil {
		return err
	}

	channels, err := cmd.Flags().GetInt("channels")
	if err != nil {
		return err
	}
	if channels <= 0 {
		return fmt.Errorf("%w: %d", model.ErrInvalidChannels, channels)
	}

	w := cmd.OutOrStdout()
	switch name {
	case convvae.Name:
		return showSchedule(w, channels)
	case siamese.Name:
		cfg := siamese.ResNet50Config()
		cfg.InChannels = channels
		showResNet(w, cfg)
		return nil
	default:
		return fmt.Errorf("no schedule for %s", name)
	}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func channelsString(in, out int) string {
	return fmt.Sprintf("%d -> %d", in, out)
}

// showSchedule - Gibt Encoder- und Decoder-Fahrplan des ConvVAEGMN aus
func showSchedule(w io.Writer, channels int) error {
	enc, dec := convvae.EncoderSchedule(channels), convvae.DecoderSchedule(channels)
	if err := convvae.ValidateSchedule(enc, dec); err != nil {
		return err
	}

	table := newTable(w, []string{"STAGE", "LAYER", "CHANNELS", "KERNEL", "STRIDE", "PADDING", "INPUT", "OUTPUT", "OUTPUT PADDING"})
	for i, s := range enc {
		stride := max(s.Stride, 1)
		table.Append([]string{
			"encoder." + strconv.Itoa(i), "Conv2d", channelsString(s.InChannels, s.OutChannels),
			strconv.Itoa(s.Kernel), strconv.Itoa(stride), strconv.Itoa(s.Padding),
			s.Input.String(), s.Output().String(), "-",
		})
	}
	for i, s := range dec {
		outpad, err := s.OutputPadding()
		if err != nil {
			return err
		}
		table.Append([]string{
			"decoder." + strconv.Itoa(i), "ConvTranspose2d", channelsString(s.InChannels, s.OutChannels),
			strconv.Itoa(s.Kernel), strconv.Itoa(max(s.Stride, 1)), strconv.Itoa(s.Padding),
			s.Input.String(), s.Target.String(), outpad.String(),
		})
	}
	table.Render()
	return nil
}

// showResNet - Gibt Stufen und Kopf des SiameseResNet aus
func showResNet(w io.Writer, cfg siamese.ResNetConfig) {
	table := newTable(w, []string{"STAGE", "BLOCKS", "CHANNELS"})
	table.Append([]string{"conv1", "1", channelsString(cfg.InChannels, cfg.Width)})

	in := cfg.Width
	for i, n := range cfg.Blocks {
		out := cfg.Width << i * 4
		table.Append([]string{"layer" + strconv.Itoa(i+1), strconv.Itoa(n), channelsString(in, out)})
		in = out
	}
	table.Append([]string{"fc", "3", channelsString(cfg.Features(), siamese.Embedding)})
	table.Render()
}

// newShowCmd - Erstellt den show Command
func newShowCmd() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show MODEL",
		Short: "Show the layer schedule of a model",
		Args:  cobra.ExactArgs(1),
		RunE:  ShowHandler,
	}

	showCmd.Flags().IntP("channels", "c", 3, "Number of image channels")

	return showCmd
}
