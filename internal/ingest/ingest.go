// Package ingest implements the filing ingestion pipeline: fetch a
// company's 10-Ks from EDGAR, extract and chunk their text, embed the
// chunks and write them to the company's vector collection.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finsight/finsight/internal/chunker"
	"github.com/finsight/finsight/internal/edgar"
	"github.com/finsight/finsight/internal/extract"
	"github.com/finsight/finsight/internal/metadata"
	"github.com/finsight/finsight/internal/tenant"
)

// ErrEmptyDocument indicates a filing document produced no text after
// extraction, so there is nothing to embed.
var ErrEmptyDocument = errors.New("filing document is empty")

// documentSource lists and downloads filings. *edgar.Client satisfies it.
type documentSource interface {
	Lookup(ctx context.Context, ticker string) (edgar.Company, error)
	Recent10Ks(ctx context.Context, cik string, limit int) ([]edgar.Filing, error)
	Document(ctx context.Context, cik, accessionNumber, primaryDocument string) ([]byte, error)
}

// embedder turns chunk texts into vectors. *embed.Client satisfies it.
type embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// vectorStore writes records into a ticker's collection.
type vectorStore interface {
	Insert(ctx context.Context, ticker string, records []tenant.Record) error
}

// metadataStore is the slice of metadata.Store the pipeline needs.
type metadataStore interface {
	UpsertCompany(ctx context.Context, ticker, name, cik string) (metadata.Company, error)
	InsertFiling(ctx context.Context, f metadata.Filing) (uuid.UUID, error)
	MarkFilingIngested(ctx context.Context, id uuid.UUID, chunkCount int) error
	FilingIngested(ctx context.Context, companyID uuid.UUID, accession string) (bool, error)
}

// RegistryWriter adapts *tenant.Registry to the pipeline's vectorStore,
// creating the ticker's collection on first write.
type RegistryWriter struct {
	Registry *tenant.Registry
}

func (w RegistryWriter) Insert(ctx context.Context, ticker string, records []tenant.Record) error {
	collection, err := w.Registry.Collection(ctx, ticker)
	if err != nil {
		return err
	}
	return collection.Insert(ctx, records)
}

// Config configures the chunking stage of the pipeline.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// FilingResult summarizes one ingested filing.
type FilingResult struct {
	FilingID        uuid.UUID
	AccessionNumber string
	FiscalYear      int
	ChunkCount      int
	Reingested      bool // a completed ingestion for this accession already existed
}

// Result summarizes one Ingest run.
type Result struct {
	Ticker      string
	CompanyName string
	Filings     []FilingResult
	TotalChunks int
	Elapsed     time.Duration
}

// Pipeline ingests filings for one ticker at a time.
//
// Pipeline is safe for concurrent use by multiple goroutines, though
// concurrent runs for the same ticker will race on re-ingestion warnings.
type Pipeline struct {
	source   documentSource
	embedder embedder
	vectors  vectorStore
	meta     metadataStore
	cfg      Config
	logger   *slog.Logger
}

// New creates a Pipeline. All dependencies are required.
func New(source documentSource, emb embedder, vectors vectorStore, meta metadataStore,
	cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if source == nil || emb == nil || vectors == nil || meta == nil {
		return nil, fmt.Errorf("source, embedder, vector store and metadata store are required")
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:   source,
		embedder: emb,
		vectors:  vectors,
		meta:     meta,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Ingest fetches up to filingCount of the ticker's most recent 10-Ks and
// writes their chunks into the ticker's collection. Filings are processed
// in order; the first failure aborts the run, leaving already-completed
// filings marked ingested and the failed one without an ingested_at stamp.
func (p *Pipeline) Ingest(ctx context.Context, ticker string, filingCount int) (*Result, error) {
	normalized, err := tenant.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	company, err := p.source.Lookup(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("looking up ticker: %w", err)
	}

	record, err := p.meta.UpsertCompany(ctx, normalized, company.Name, company.CIK)
	if err != nil {
		return nil, fmt.Errorf("recording company: %w", err)
	}

	filings, err := p.source.Recent10Ks(ctx, company.CIK, filingCount)
	if err != nil {
		return nil, fmt.Errorf("listing filings: %w", err)
	}

	result := &Result{Ticker: normalized, CompanyName: company.Name}
	for _, filing := range filings {
		fr, err := p.ingestFiling(ctx, record, company, filing)
		if err != nil {
			return nil, fmt.Errorf("filing %s: %w", filing.AccessionNumber, err)
		}
		result.Filings = append(result.Filings, fr)
		result.TotalChunks += fr.ChunkCount
	}

	result.Elapsed = time.Since(start)
	p.logger.Info("ingestion complete",
		"ticker", normalized,
		"filings", len(result.Filings),
		"chunks", result.TotalChunks,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

func (p *Pipeline) ingestFiling(ctx context.Context, company metadata.Company,
	registrant edgar.Company, filing edgar.Filing) (FilingResult, error) {

	already, err := p.meta.FilingIngested(ctx, company.ID, filing.AccessionNumber)
	if err != nil {
		return FilingResult{}, fmt.Errorf("checking prior ingestion: %w", err)
	}
	if already {
		p.logger.Warn("re-ingesting already completed filing",
			"ticker", company.Ticker,
			"accession", filing.AccessionNumber,
		)
	}

	raw, err := p.source.Document(ctx, registrant.CIK, filing.AccessionNumber, filing.PrimaryDocument)
	if err != nil {
		return FilingResult{}, fmt.Errorf("fetching document: %w", err)
	}

	// Recorded right after the download: a failure in any later step
	// leaves the row with ingested_at NULL, so the attempt stays visible.
	filingID, err := p.meta.InsertFiling(ctx, metadata.Filing{
		CompanyID:       company.ID,
		AccessionNumber: filing.AccessionNumber,
		FormType:        filing.FormType,
		FiscalYear:      filing.FiscalYear(),
		FiledAt:         filing.FiledAt,
		PrimaryDocument: filing.PrimaryDocument,
		RawSize:         int64(len(raw)),
	})
	if err != nil {
		return FilingResult{}, fmt.Errorf("recording filing: %w", err)
	}

	text, err := extract.Text(raw)
	if err != nil {
		return FilingResult{}, fmt.Errorf("extracting text: %w", err)
	}
	if text == "" {
		return FilingResult{}, fmt.Errorf("%w: %s", ErrEmptyDocument, filing.PrimaryDocument)
	}

	chunks, err := chunker.Split(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if err != nil {
		return FilingResult{}, fmt.Errorf("chunking: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return FilingResult{}, fmt.Errorf("embedding: %w", err)
	}

	records := make([]tenant.Record, len(chunks))
	for i, c := range chunks {
		records[i] = tenant.Record{
			FilingID:   filingID,
			Ticker:     company.Ticker,
			FiscalYear: filing.FiscalYear(),
			Accession:  filing.AccessionNumber,
			ChunkIndex: c.Index,
			Text:       c.Text,
			Embedding:  vectors[i],
		}
	}
	if err := p.vectors.Insert(ctx, company.Ticker, records); err != nil {
		return FilingResult{}, fmt.Errorf("writing vectors: %w", err)
	}

	// Stamped last: an interrupted run leaves ingested_at NULL, which
	// re-ingestion treats as "never completed".
	if err := p.meta.MarkFilingIngested(ctx, filingID, len(chunks)); err != nil {
		return FilingResult{}, fmt.Errorf("marking filing ingested: %w", err)
	}

	p.logger.Debug("filing ingested",
		"ticker", company.Ticker,
		"accession", filing.AccessionNumber,
		"fiscal_year", filing.FiscalYear(),
		"chunks", len(chunks),
	)

	return FilingResult{
		FilingID:        filingID,
		AccessionNumber: filing.AccessionNumber,
		FiscalYear:      filing.FiscalYear(),
		ChunkCount:      len(chunks),
		Reingested:      already,
	}, nil
}
