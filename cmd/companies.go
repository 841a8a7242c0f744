package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finsight/finsight/internal/app"
	"github.com/finsight/finsight/internal/config"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List ingested companies",
	Args:  cobra.NoArgs,
	RunE:  runCompanies,
}

func init() {
	rootCmd.AddCommand(companiesCmd)
}

func runCompanies(cmd *cobra.Command, args []string) error {
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

	companies, err := application.Analyzer.Companies(ctx)
	if err != nil {
		return fmt.Errorf("listing companies: %w", err)
	}

	if len(companies) == 0 {
		fmt.Println("No companies ingested yet. Run: finsight ingest TICKER")
		return nil
	}

	for _, c := range companies {
		fmt.Printf("%-8s %s\n", c.Ticker, c.Name)
	}
	return nil
}
