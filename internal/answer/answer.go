// Package answer synthesizes cited answers from retrieved filing chunks.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/finsight/finsight/internal/tenant"
)

// ErrSynthesisUnavailable indicates the language model call failed.
// Synthesis is deliberately not retried; a retry would double model
// spend for a question the caller can simply re-ask.
var ErrSynthesisUnavailable = errors.New("answer synthesis unavailable")

// Answer is a synthesized answer with its supporting sources and the
// citation verification verdict.
type Answer struct {
	Text    string
	Sources []tenant.Source

	// Derived by the citation verifier.
	CitationCount         int
	SourceCount           int
	HasCitations          bool
	AllSourcesMatchTenant bool

	// TenantWarning is set when retrieved sources carried a foreign
	// ticker. Isolation violations are surfaced, never swallowed, but
	// they do not fail the question.
	TenantWarning string
}

// Config configures the Synthesizer.
type Config struct {
	// ModelName is the provider-qualified model, e.g. "googleai/gemini-2.5-flash".
	ModelName       string
	Temperature     float32
	MaxOutputTokens int
	Timeout         time.Duration
}

// Synthesizer issues generation calls through a Genkit instance.
type Synthesizer struct {
	g      *genkit.Genkit
	cfg    Config
	logger *slog.Logger
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(g *genkit.Genkit, cfg Config, logger *slog.Logger) (*Synthesizer, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{g: g, cfg: cfg, logger: logger}, nil
}

// Synthesize answers question from sources with one model call.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, sources []tenant.Source) (string, error) {
	prompt := BuildPrompt(question, sources)

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	maxTokens := int32(s.cfg.MaxOutputTokens)
	temperature := s.cfg.Temperature
	resp, err := genkit.Generate(genCtx, s.g,
		ai.WithModelName(s.cfg.ModelName),
		ai.WithPrompt(prompt),
		ai.WithConfig(&genai.GenerateContentConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     &temperature,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSynthesisUnavailable, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: model returned empty answer", ErrSynthesisUnavailable)
	}

	s.logger.Debug("answer synthesized",
		"model", s.cfg.ModelName,
		"sources", len(sources),
		"answer_chars", len(text),
		"elapsed", time.Since(start),
	)
	return text, nil
}
