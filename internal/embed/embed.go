// Package embed wraps a Genkit embedder with batching, bounded concurrency,
// rate limiting and retry for bulk filing ingestion.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

var (
	// ErrProviderUnavailable indicates the embedding provider kept failing
	// after all retries were exhausted.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrDimensionMismatch indicates the provider returned a vector whose
	// length differs from the configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Config configures the embedding client.
type Config struct {
	// Dimension is the expected output dimensionality. The provider is asked
	// to truncate to this size and every returned vector is checked against it.
	Dimension int

	// BatchSize is the maximum number of texts per provider request.
	BatchSize int

	// Concurrency bounds the number of in-flight batch requests.
	Concurrency int

	// MaxRetries is the number of retry attempts per batch after the first try.
	MaxRetries int

	// InitialInterval and MaxInterval bound the exponential backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// RequestsPerSecond gates outbound attempts. Zero disables the limiter.
	RequestsPerSecond float64
}

// DefaultConfig returns defaults suited to the Gemini embedding API.
func DefaultConfig(dimension int) Config {
	return Config{
		Dimension:         dimension,
		BatchSize:         100,
		Concurrency:       4,
		MaxRetries:        3,
		InitialInterval:   500 * time.Millisecond,
		MaxInterval:       10 * time.Second,
		RequestsPerSecond: 5,
	}
}

// Client embeds texts through a Genkit ai.Embedder.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	embedder ai.Embedder
	cfg      Config
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates a Client. A nil logger falls back to slog.Default().
func New(embedder ai.Embedder, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		embedder: embedder,
		cfg:      cfg,
		limiter:  limiter,
		logger:   logger,
	}
}

// EmbedTexts embeds texts and returns one vector per input, in input order.
// Texts are split into batches of at most Config.BatchSize; batches are
// embedded concurrently with at most Config.Concurrency in flight.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(texts))
		offset, batch := start, texts[start:end]

		g.Go(func() error {
			embeddings, err := c.embedBatch(gctx, batch)
			if err != nil {
				return err
			}
			// Each goroutine writes a disjoint slice range.
			copy(vectors[offset:], embeddings)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedBatch embeds one batch with exponential backoff retry. Each attempt
// (including retries) waits on the rate limiter first.
func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	dim := int32(c.cfg.Dimension)
	req := &ai.EmbedRequest{
		Input:   docs,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	}

	var lastErr error
	delay := c.cfg.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := c.embedder.Embed(ctx, req)
		if err == nil {
			vectors, convErr := c.extractVectors(resp, len(texts))
			if convErr != nil {
				return nil, convErr
			}
			if attempt > 0 {
				c.logger.Debug("batch embedded after retry",
					"attempts", attempt+1,
					"elapsed", time.Since(start),
				)
			}
			return vectors, nil
		}

		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("embed batch: %w", err)
		}

		if attempt == c.cfg.MaxRetries {
			break
		}

		c.logger.Debug("retrying embedding batch",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.cfg.MaxInterval)
		}
	}

	return nil, fmt.Errorf("%w: %d attempts over %v: %v",
		ErrProviderUnavailable, c.cfg.MaxRetries+1, time.Since(start), lastErr)
}

// extractVectors validates count and dimension of a provider response.
func (c *Client) extractVectors(resp *ai.EmbedResponse, want int) ([][]float32, error) {
	if len(resp.Embeddings) != want {
		return nil, fmt.Errorf("provider returned %d embeddings for %d texts",
			len(resp.Embeddings), want)
	}

	vectors := make([][]float32, want)
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) != c.cfg.Dimension {
			return nil, fmt.Errorf("%w: got %d, want %d",
				ErrDimensionMismatch, len(emb.Embedding), c.cfg.Dimension)
		}
		vectors[i] = emb.Embedding
	}
	return vectors, nil
}
