package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/finsight/finsight/internal/app"
	"github.com/finsight/finsight/internal/config"
)

var filingCount int

var ingestCmd = &cobra.Command{
	Use:   "ingest TICKER",
	Short: "Download and index a company's recent 10-K filings",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&filingCount, "filings", 1,
		"number of recent 10-K filings to ingest")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.ValidateForIngest(); err != nil {
		return err
	}
	if err := requireAPIKey(); err != nil {
		return err
	}
	if filingCount < 1 {
		return fmt.Errorf("--filings must be at least 1, got %d", filingCount)
	}

	application, cleanup, err := app.New(ctx, cfg, newLogger())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer cleanup()

	ticker := args[0]
	fmt.Printf("Ingesting %d filing(s) for %s...\n", filingCount, ticker)

	result, err := application.Analyzer.Ingest(ctx, ticker, filingCount)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", ticker, err)
	}

	fmt.Printf("\n%s (%s): %d filing(s), %d chunks in %s\n",
		result.Ticker, result.CompanyName, len(result.Filings),
		result.TotalChunks, result.Elapsed.Round(time.Millisecond))
	for _, f := range result.Filings {
		status := ""
		if f.Reingested {
			status = " (re-ingested)"
		}
		fmt.Printf("  FY%d %s: %d chunks%s\n",
			f.FiscalYear, f.AccessionNumber, f.ChunkCount, status)
	}
	return nil
}

// requireAPIKey fails early with setup instructions when the Gemini key
// is missing; Genkit would otherwise fail on the first model call.
func requireAPIKey() error {
	if os.Getenv("GEMINI_API_KEY") != "" {
		return nil
	}
	fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Please run:")
	fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
	return fmt.Errorf("GEMINI_API_KEY not set")
}
