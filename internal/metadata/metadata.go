// Package metadata persists company and filing records in PostgreSQL.
// It is the bookkeeping side of ingestion; the vector payload lives in
// the per-ticker tenant collections.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates the requested company or filing does not exist.
var ErrNotFound = errors.New("not found")

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Company is one row of the companies table.
type Company struct {
	ID        uuid.UUID
	Ticker    string
	Name      string
	CIK       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filing is one row of the filings table. IngestedAt is nil until the
// filing's chunks are fully written to the vector store.
type Filing struct {
	ID              uuid.UUID
	CompanyID       uuid.UUID
	AccessionNumber string
	FormType        string
	FiscalYear      int
	FiledAt         time.Time
	PrimaryDocument string
	RawSize         int64
	ChunkCount      int
	IngestedAt      *time.Time
	CreatedAt       time.Time
}

// Store reads and writes company/filing metadata.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates a Store. A nil logger falls back to slog.Default().
func NewStore(db querier, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

const companyCols = `id, ticker, name, COALESCE(cik, ''), created_at, updated_at`

// UpsertCompany inserts a company or refreshes its name/CIK if the ticker
// already exists. Empty name/cik values never overwrite existing data.
func (s *Store) UpsertCompany(ctx context.Context, ticker, name, cik string) (Company, error) {
	var c Company
	err := s.db.QueryRow(ctx,
		`INSERT INTO companies (ticker, name, cik)
		 VALUES ($1, $2, NULLIF($3, ''))
		 ON CONFLICT (ticker) DO UPDATE
		 SET name = CASE WHEN EXCLUDED.name = '' THEN companies.name ELSE EXCLUDED.name END,
		     cik = COALESCE(EXCLUDED.cik, companies.cik),
		     updated_at = now()
		 RETURNING `+companyCols,
		ticker, name, cik,
	).Scan(&c.ID, &c.Ticker, &c.Name, &c.CIK, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Company{}, fmt.Errorf("upserting company %s: %w", ticker, err)
	}
	return c, nil
}

// GetCompany returns the company for ticker, or ErrNotFound.
func (s *Store) GetCompany(ctx context.Context, ticker string) (Company, error) {
	var c Company
	err := s.db.QueryRow(ctx,
		`SELECT `+companyCols+` FROM companies WHERE ticker = $1`,
		ticker,
	).Scan(&c.ID, &c.Ticker, &c.Name, &c.CIK, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, fmt.Errorf("%w: company %s", ErrNotFound, ticker)
	}
	if err != nil {
		return Company{}, fmt.Errorf("getting company %s: %w", ticker, err)
	}
	return c, nil
}

// ListCompanies returns all companies ordered by ticker.
func (s *Store) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+companyCols+` FROM companies ORDER BY ticker`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Ticker, &c.Name, &c.CIK, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating companies: %w", err)
	}
	return companies, nil
}

// InsertFiling records a new filing row and returns its ID. Repeated
// ingestion of the same accession number creates a new row each time;
// FilingIngested lets callers detect and log that beforehand.
func (s *Store) InsertFiling(ctx context.Context, f Filing) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO filings (company_id, accession_number, form_type, fiscal_year,
		                      filed_at, primary_document, raw_size)
		 VALUES ($1, $2, $3, NULLIF($4, 0), NULLIF($5, '0001-01-01'::date), $6, $7)
		 RETURNING id`,
		f.CompanyID, f.AccessionNumber, f.FormType, f.FiscalYear,
		f.FiledAt, f.PrimaryDocument, f.RawSize,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting filing %s: %w", f.AccessionNumber, err)
	}
	return id, nil
}

// MarkFilingIngested stamps ingested_at and the final chunk count once the
// filing's vectors are fully written.
func (s *Store) MarkFilingIngested(ctx context.Context, id uuid.UUID, chunkCount int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE filings SET ingested_at = now(), chunk_count = $2 WHERE id = $1`,
		id, chunkCount,
	)
	if err != nil {
		return fmt.Errorf("marking filing %s ingested: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: filing %s", ErrNotFound, id)
	}
	return nil
}

// FilingIngested reports whether a completed ingestion already exists for
// the company/accession pair.
func (s *Store) FilingIngested(ctx context.Context, companyID uuid.UUID, accession string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM filings
		   WHERE company_id = $1 AND accession_number = $2 AND ingested_at IS NOT NULL
		 )`,
		companyID, accession,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking filing %s: %w", accession, err)
	}
	return exists, nil
}

// ListFilings returns a company's filings, newest fiscal year first.
func (s *Store) ListFilings(ctx context.Context, companyID uuid.UUID) ([]Filing, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, company_id, accession_number, form_type,
		        COALESCE(fiscal_year, 0), COALESCE(filed_at, '0001-01-01'::date),
		        primary_document, raw_size, chunk_count, ingested_at, created_at
		 FROM filings
		 WHERE company_id = $1
		 ORDER BY fiscal_year DESC NULLS LAST, created_at DESC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing filings: %w", err)
	}
	defer rows.Close()

	var filings []Filing
	for rows.Next() {
		var f Filing
		if err := rows.Scan(
			&f.ID, &f.CompanyID, &f.AccessionNumber, &f.FormType,
			&f.FiscalYear, &f.FiledAt, &f.PrimaryDocument,
			&f.RawSize, &f.ChunkCount, &f.IngestedAt, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning filing: %w", err)
		}
		filings = append(filings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating filings: %w", err)
	}
	return filings, nil
}
