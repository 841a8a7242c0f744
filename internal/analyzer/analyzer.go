// Package analyzer is the session-scoped facade over ingestion,
// retrieval and answer synthesis. One Analyzer serves one interactive
// session; it holds no state beyond its collaborators.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finsight/finsight/internal/answer"
	"github.com/finsight/finsight/internal/citation"
	"github.com/finsight/finsight/internal/ingest"
	"github.com/finsight/finsight/internal/metadata"
	"github.com/finsight/finsight/internal/tenant"
)

// ErrNotFound indicates the ticker has never been analyzed; callers
// should run Ingest first.
var ErrNotFound = errors.New("company not analyzed")

// ingester runs the ingestion pipeline. *ingest.Pipeline satisfies it.
type ingester interface {
	Ingest(ctx context.Context, ticker string, filingCount int) (*ingest.Result, error)
}

// retriever returns ranked sources for a question. *tenant.Retriever satisfies it.
type retriever interface {
	Retrieve(ctx context.Context, ticker, question string) ([]tenant.Source, error)
}

// synthesizer produces the answer text. *answer.Synthesizer satisfies it.
type synthesizer interface {
	Synthesize(ctx context.Context, question string, sources []tenant.Source) (string, error)
}

// collections checks which tickers have been ingested. *tenant.Registry satisfies it.
type collections interface {
	Existing(ctx context.Context, ticker string) (*tenant.Collection, error)
}

// companyStore reads company metadata. *metadata.Store satisfies it.
type companyStore interface {
	GetCompany(ctx context.Context, ticker string) (metadata.Company, error)
	ListCompanies(ctx context.Context) ([]metadata.Company, error)
}

// Analyzer answers questions about ingested SEC filings.
type Analyzer struct {
	pipeline  ingester
	retriever retriever
	synth     synthesizer
	registry  collections
	companies companyStore
	logger    *slog.Logger
}

// New creates an Analyzer. All collaborators are required.
func New(pipeline ingester, r retriever, synth synthesizer,
	registry collections, companies companyStore, logger *slog.Logger) (*Analyzer, error) {
	if pipeline == nil || r == nil || synth == nil || registry == nil || companies == nil {
		return nil, fmt.Errorf("all analyzer collaborators are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		pipeline:  pipeline,
		retriever: r,
		synth:     synth,
		registry:  registry,
		companies: companies,
		logger:    logger,
	}, nil
}

// Ingest downloads and indexes up to filingCount recent 10-Ks for ticker.
func (a *Analyzer) Ingest(ctx context.Context, ticker string, filingCount int) (*ingest.Result, error) {
	return a.pipeline.Ingest(ctx, ticker, filingCount)
}

// LoadExisting verifies that ticker was previously ingested. Returns
// ErrNotFound when it was not; an Ingest run fixes that.
func (a *Analyzer) LoadExisting(ctx context.Context, ticker string) error {
	normalized, err := tenant.NormalizeTicker(ticker)
	if err != nil {
		return err
	}
	if _, err := a.registry.Existing(ctx, normalized); err != nil {
		if errors.Is(err, tenant.ErrNoCollection) {
			return fmt.Errorf("%w: %s", ErrNotFound, normalized)
		}
		return err
	}
	a.logger.Debug("loaded existing company", "ticker", normalized)
	return nil
}

// Ask answers a question about ticker's filings with per-claim citations.
// Returns ErrNotFound (and no Answer) for never-analyzed tickers. A
// tenant isolation breach in the retrieved sources is reported through
// Answer.TenantWarning, never as an error.
func (a *Analyzer) Ask(ctx context.Context, ticker, question string) (*answer.Answer, error) {
	normalized, err := tenant.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	if _, err := a.registry.Existing(ctx, normalized); err != nil {
		if errors.Is(err, tenant.ErrNoCollection) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, normalized)
		}
		return nil, err
	}

	sources, err := a.retriever.Retrieve(ctx, normalized, question)
	if err != nil {
		return nil, fmt.Errorf("retrieving sources: %w", err)
	}

	text, err := a.synth.Synthesize(ctx, question, sources)
	if err != nil {
		return nil, err
	}

	report := citation.Verify(text, sources, normalized)
	ans := &answer.Answer{
		Text:                  text,
		Sources:               sources,
		CitationCount:         report.CitationCount,
		SourceCount:           report.SourceCount,
		HasCitations:          report.HasCitations,
		AllSourcesMatchTenant: report.AllSourcesMatchTenant,
	}
	if !report.AllSourcesMatchTenant {
		ans.TenantWarning = fmt.Sprintf(
			"retrieved sources include records from a company other than %s", normalized)
		a.logger.Warn("tenant isolation mismatch in retrieved sources",
			"ticker", normalized,
			"sources", len(sources),
		)
	}

	a.logger.Info("question answered",
		"ticker", normalized,
		"sources", report.SourceCount,
		"citations", report.CitationCount,
		"cited", report.HasCitations,
	)
	return ans, nil
}

// Companies lists every company that has metadata recorded.
func (a *Analyzer) Companies(ctx context.Context) ([]metadata.Company, error) {
	return a.companies.ListCompanies(ctx)
}

// Company returns metadata for one ticker, mapping missing rows to ErrNotFound.
func (a *Analyzer) Company(ctx context.Context, ticker string) (metadata.Company, error) {
	normalized, err := tenant.NormalizeTicker(ticker)
	if err != nil {
		return metadata.Company{}, err
	}
	c, err := a.companies.GetCompany(ctx, normalized)
	if errors.Is(err, metadata.ErrNotFound) {
		return metadata.Company{}, fmt.Errorf("%w: %s", ErrNotFound, normalized)
	}
	return c, err
}
