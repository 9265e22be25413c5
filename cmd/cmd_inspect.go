// cmd_inspect.go - Inspect Command fuer Checkpoint-Dateien
// Hauptfunktionen: InspectHandler
package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/7blacky7/gmncount/checkpoint"
)

// InspectHandler - Listet Tensoren eines Checkpoints mit DType und Form
func InspectHandler(cmd *cobra.Command, args []string) error {
	sd, err := checkpoint.Read(args[0])
	if err != nil {
		return err
	}

	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	table := newTable(w, []string{"NAME", "DTYPE", "SHAPE", "ELEMENTS"})
	var count, total int
	err = sd.Each(func(name string, t *checkpoint.Tensor) error {
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		count++
		total += t.Elements()
		table.Append([]string{name, t.DType.String(), fmt.Sprint(t.Shape), strconv.Itoa(t.Elements())})
		return nil
	})
	if err != nil {
		return err
	}
	table.Render()

	fmt.Fprintf(w, "\n%d tensors, %d elements\n", count, total)
	return nil
}

// newInspectCmd - Erstellt den inspect Command
func newInspectCmd() *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect CHECKPOINT",
		Short: "List the tensors of a .pt, .pth, .bin or .safetensors checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  InspectHandler,
	}

	inspectCmd.Flags().String("prefix", "", "Only show tensors whose name starts with this prefix")

	return inspectCmd
}
