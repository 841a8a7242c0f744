package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finsight/finsight/internal/analyzer"
	"github.com/finsight/finsight/internal/answer"
	"github.com/finsight/finsight/internal/app"
	"github.com/finsight/finsight/internal/config"
)

var askCmd = &cobra.Command{
	Use:   "ask TICKER QUESTION...",
	Short: "Ask a question about an ingested company's 10-K filings",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := requireAPIKey(); err != nil {
		return err
	}

	application, cleanup, err := app.New(ctx, cfg, newLogger())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer cleanup()

	ticker := args[0]
	question := strings.Join(args[1:], " ")

	result, err := application.Analyzer.Ask(ctx, ticker, question)
	if err != nil {
		if errors.Is(err, analyzer.ErrNotFound) {
			return fmt.Errorf("%s has not been analyzed yet, run: finsight ingest %s", ticker, ticker)
		}
		return fmt.Errorf("answering question: %w", err)
	}

	printAnswer(result)
	return nil
}

func printAnswer(a *answer.Answer) {
	fmt.Println(a.Text)
	fmt.Println()

	if len(a.Sources) > 0 {
		fmt.Println("Sources:")
		for _, s := range a.Sources {
			fmt.Printf("  [Source %d] %s 10-K FY%d (%s, chunk %d, similarity %.3f)\n",
				s.Rank, s.Ticker, s.FiscalYear, s.Accession, s.ChunkIndex, s.Similarity)
		}
		fmt.Println()
	}

	fmt.Printf("Citations: %d across %d source(s)\n", a.CitationCount, a.SourceCount)
	if !a.HasCitations {
		fmt.Println("Warning: the answer contains no [Source N] citations")
	}
	if a.TenantWarning != "" {
		fmt.Printf("Warning: %s\n", a.TenantWarning)
	}
}
