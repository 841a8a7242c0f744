// Package cmd defines the finsight command-line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/finsight/finsight/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "finsight - question answering over SEC 10-K filings",
	Long: `finsight ingests companies' SEC 10-K filings into per-company vector
collections and answers natural-language questions about them with
per-claim source citations.

Typical workflow:

  finsight ingest AAPL --filings 2
  finsight ask AAPL "What were the main revenue drivers?"`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
}

// newLogger builds the CLI logger honoring the --verbose flag.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}
