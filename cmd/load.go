package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finsight/finsight/internal/analyzer"
	"github.com/finsight/finsight/internal/app"
	"github.com/finsight/finsight/internal/config"
)

var loadCmd = &cobra.Command{
	Use:   "load TICKER",
	Short: "Verify that a company was previously ingested",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	application, cleanup, err := app.New(ctx, cfg, newLogger())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer cleanup()

	ticker := args[0]
	if err := application.Analyzer.LoadExisting(ctx, ticker); err != nil {
		if errors.Is(err, analyzer.ErrNotFound) {
			return fmt.Errorf("%s has not been analyzed yet, run: finsight ingest %s", ticker, ticker)
		}
		return fmt.Errorf("loading %s: %w", ticker, err)
	}

	company, err := application.Analyzer.Company(ctx, ticker)
	if err != nil {
		// The collection exists even if the metadata row is missing.
		fmt.Printf("%s is ready for questions\n", ticker)
		return nil
	}

	fmt.Printf("%s (%s) is ready for questions\n", company.Ticker, company.Name)
	return nil
}
