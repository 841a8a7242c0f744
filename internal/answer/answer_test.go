package answer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight/internal/tenant"
)

func sampleSources() []tenant.Source {
	return []tenant.Source{
		{Rank: 1, Ticker: "AAPL", FiscalYear: 2024, ChunkIndex: 12,
			Text: "Total net sales were $391.0 billion in fiscal 2024."},
		{Rank: 2, Ticker: "AAPL", FiscalYear: 2024, ChunkIndex: 47,
			Text: "Services revenue grew 13% to a new all-time high."},
	}
}

func TestBuildPromptNumbersSourcesByRank(t *testing.T) {
	prompt := BuildPrompt("What were total net sales?", sampleSources())

	idx1 := strings.Index(prompt, "[Source 1]")
	idx2 := strings.Index(prompt, "[Source 2]")
	require.Positive(t, idx1)
	require.Greater(t, idx2, idx1)

	assert.Contains(t, prompt, "Total net sales were $391.0 billion in fiscal 2024.")
	assert.Contains(t, prompt, "Services revenue grew 13% to a new all-time high.")
	assert.Contains(t, prompt, "(AAPL 10-K, FY2024)")
}

func TestBuildPromptCitationContract(t *testing.T) {
	prompt := BuildPrompt("What were total net sales?", sampleSources())

	assert.Contains(t, prompt, "You are a financial analyst examining SEC 10-K filings.")
	assert.Contains(t, prompt, "CITATION REQUIREMENTS")
	assert.Contains(t, prompt, "EVERY factual claim, number, or statement MUST include a citation")
	assert.Contains(t, prompt, "[Source 1, Source 2]")
	assert.Contains(t, prompt, NotAvailableSentence)
	assert.Contains(t, prompt, "EXAMPLE FORMAT:")
	assert.Contains(t, prompt, "Question: What were total net sales?")
	assert.True(t, strings.HasSuffix(prompt,
		"Provide a detailed, well-structured answer with complete citations:"))
}

func TestBuildPromptDeterministic(t *testing.T) {
	sources := sampleSources()
	first := BuildPrompt("How did services perform?", sources)
	second := BuildPrompt("How did services perform?", sources)
	assert.Equal(t, first, second)
}

func TestBuildPromptNoSources(t *testing.T) {
	prompt := BuildPrompt("Anything?", nil)

	assert.NotContains(t, prompt, "[Source 1]")
	assert.Contains(t, prompt, "Question: Anything?")
}

func TestBuildPromptManySources(t *testing.T) {
	var sources []tenant.Source
	for i := range 5 {
		sources = append(sources, tenant.Source{
			Rank:   i + 1,
			Ticker: "MSFT",
			Text:   fmt.Sprintf("excerpt %d", i),
		})
	}
	prompt := BuildPrompt("q", sources)
	for i := 1; i <= 5; i++ {
		assert.Contains(t, prompt, fmt.Sprintf("[Source %d]", i))
	}
}

func TestNewSynthesizerValidation(t *testing.T) {
	_, err := NewSynthesizer(nil, Config{ModelName: "googleai/gemini-2.5-flash"}, nil)
	assert.Error(t, err)
}
