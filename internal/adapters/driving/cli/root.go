// Package cli provides the shopbot command line: chat front ends, catalog
// and document ingestion, and operator commands.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/shopbot/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=v1.2.3".
var version = "dev"

var (
	verbose   bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "shopbot",
	Short: "Retrieval-augmented shop assistant",
	Long: `shopbot answers customer questions about a product catalog and store
documents. Each question is embedded, matched against stored products and
document chunks, and answered by a language model from that context.

Load data with 'shopbot catalog import' and 'shopbot ingest', then talk to it
with 'shopbot chat', the Messenger webhook or the MCP server.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.shopbot)")
}

// Execute runs the root command. Command output goes to stdout and
// diagnostics to stderr.
func Execute() error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.Execute()
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}
