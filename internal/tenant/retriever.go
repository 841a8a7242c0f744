package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// queryEmbedder embeds a single query string. *embed.Client satisfies it.
type queryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever answers "which chunks of this company's filings are closest
// to this question" by embedding the question and searching the ticker's
// collection.
type Retriever struct {
	registry *Registry
	embedder queryEmbedder
	topK     int
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. topK must be positive.
func NewRetriever(registry *Registry, embedder queryEmbedder, topK int, logger *slog.Logger) (*Retriever, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{registry: registry, embedder: embedder, topK: topK, logger: logger}, nil
}

// Retrieve returns the topK most similar sources for question within the
// ticker's collection, ranked 1..k. A ticker that was never ingested
// yields an empty slice, not an error; distinguishing "unknown company"
// from "no relevant chunks" is the caller's concern.
func (r *Retriever) Retrieve(ctx context.Context, ticker, question string) ([]Source, error) {
	collection, err := r.registry.Existing(ctx, ticker)
	if errors.Is(err, ErrNoCollection) {
		return []Source{}, nil
	}
	if err != nil {
		return nil, err
	}

	vec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	sources, err := collection.Search(ctx, vec, r.topK)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("retrieved sources",
		"ticker", collection.Ticker(),
		"requested", r.topK,
		"returned", len(sources),
	)
	return sources, nil
}
