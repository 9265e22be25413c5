// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/7blacky7/gmncount/envconfig"
	"github.com/7blacky7/gmncount/logutil"

	// Modelle registrieren
	_ "github.com/7blacky7/gmncount/model/models/convvae"
	_ "github.com/7blacky7/gmncount/model/models/siamese"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// setupLogging - Installiert den slog-Logger mit dem Level aus GMN_DEBUG
func setupLogging(cmd *cobra.Command, _ []string) {
	slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:               "gmncount",
		Short:             "Exemplar VAEs and Siamese counting models",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRun:  setupLogging,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	// Commands erstellen
	validateCmd := newValidateCmd()
	reconstructCmd := newReconstructCmd()
	compareCmd := newCompareCmd()
	showCmd := newShowCmd()
	inspectCmd := newInspectCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	for _, cmd := range []*cobra.Command{validateCmd, reconstructCmd, compareCmd, showCmd, inspectCmd} {
		switch cmd {
		case validateCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["GMN_DEBUG"],
				envVars["GMN_MODELS"],
				envVars["GMN_DATA"],
				envVars["GMN_DEVICE"],
				envVars["GMN_SEED"],
				envVars["GMN_NUM_THREADS"],
			})
		case reconstructCmd, compareCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["GMN_DEBUG"], envVars["GMN_SEED"]})
		default:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["GMN_DEBUG"]})
		}
	}

	rootCmd.AddCommand(
		validateCmd,
		reconstructCmd,
		compareCmd,
		showCmd,
		inspectCmd,
	)

	return rootCmd
}
