// Package app assembles the application: configuration in, a ready
// Analyzer out.
//
// Construction order matters. Tracing first, so every later component
// can emit spans. Then the database pool (migrations run before the
// pool is handed out), then the Genkit runtime and the components that
// depend on both. New returns a cleanup function that releases
// everything in reverse order.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finsight/finsight/db"
	"github.com/finsight/finsight/internal/analyzer"
	"github.com/finsight/finsight/internal/answer"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/edgar"
	"github.com/finsight/finsight/internal/embed"
	"github.com/finsight/finsight/internal/ingest"
	"github.com/finsight/finsight/internal/metadata"
	"github.com/finsight/finsight/internal/observability"
	"github.com/finsight/finsight/internal/tenant"
)

// App holds the wired application components.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Genkit   *genkit.Genkit
	Analyzer *analyzer.Analyzer
}

// New wires the application from configuration. The returned cleanup
// function flushes traces and closes the database pool; call it exactly
// once, after the App is no longer in use.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	shutdownTracing := observability.Setup(ctx, observability.Config{
		Endpoint: cfg.OTLPEndpoint,
	}, logger)

	pool, err := newDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
		pool.Close()
	}

	// GEMINI_API_KEY is read by the plugin from the environment.
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	googleEmbedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)

	meta, err := metadata.NewStore(pool, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating metadata store: %w", err)
	}

	registry, err := tenant.NewRegistry(pool, cfg.EmbedderDimension, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating collection registry: %w", err)
	}

	embedCfg := embed.DefaultConfig(cfg.EmbedderDimension)
	embedCfg.BatchSize = cfg.EmbedBatchSize
	embedCfg.Concurrency = cfg.EmbedConcurrency
	embedCfg.MaxRetries = cfg.EmbedMaxRetries
	embedClient := embed.New(googleEmbedder, embedCfg, logger)

	retriever, err := tenant.NewRetriever(registry, embedClient, cfg.TopK, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating retriever: %w", err)
	}

	synth, err := answer.NewSynthesizer(g, answer.Config{
		ModelName:       cfg.FullModelName(),
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating synthesizer: %w", err)
	}

	source, err := newFilingSource(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	pipeline, err := ingest.New(source, embedClient, ingest.RegistryWriter{Registry: registry}, meta,
		ingest.Config{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating ingestion pipeline: %w", err)
	}

	a, err := analyzer.New(pipeline, retriever, synth, registry, meta, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating analyzer: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Pool:     pool,
		Genkit:   g,
		Analyzer: a,
	}, cleanup, nil
}

// newDBPool runs migrations and creates the PostgreSQL connection pool.
func newDBPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	connURL := cfg.PostgresURL()

	if err := db.Migrate(connURL); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Debug("database migrations applied")

	poolCfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return pool, nil
}

// newFilingSource creates the EDGAR client when a user agent is
// configured. Without one, queries against already-ingested data still
// work; attempting to ingest returns an error naming the missing
// setting.
func newFilingSource(cfg *config.Config, logger *slog.Logger) (filingSource, error) {
	if cfg.EdgarUserAgent == "" {
		return unconfiguredSource{}, nil
	}
	client, err := edgar.New(edgar.Config{
		UserAgent: cfg.EdgarUserAgent,
		Timeout:   time.Duration(cfg.EdgarTimeoutMs) * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating EDGAR client: %w", err)
	}
	return client, nil
}

// filingSource mirrors the ingestion pipeline's view of *edgar.Client.
type filingSource interface {
	Lookup(ctx context.Context, ticker string) (edgar.Company, error)
	Recent10Ks(ctx context.Context, cik string, limit int) ([]edgar.Filing, error)
	Document(ctx context.Context, cik, accessionNumber, primaryDocument string) ([]byte, error)
}

// unconfiguredSource stands in for the EDGAR client when no user agent
// is set. SEC fair-access policy requires one before any request.
type unconfiguredSource struct{}

var errNoUserAgent = fmt.Errorf("EDGAR user agent not configured: set FINSIGHT_EDGAR_USER_AGENT to \"name contact@example.com\"")

func (unconfiguredSource) Lookup(context.Context, string) (edgar.Company, error) {
	return edgar.Company{}, errNoUserAgent
}

func (unconfiguredSource) Recent10Ks(context.Context, string, int) ([]edgar.Filing, error) {
	return nil, errNoUserAgent
}

func (unconfiguredSource) Document(context.Context, string, string, string) ([]byte, error) {
	return nil, errNoUserAgent
}
