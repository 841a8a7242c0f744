package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Registry hands out per-ticker collections, creating their tables on
// first use. Collections are cached so repeated lookups for the same
// ticker skip the DDL round trip.
//
// Registry is safe for concurrent use by multiple goroutines.
type Registry struct {
	db        querier
	dimension int
	logger    *slog.Logger

	mu          sync.RWMutex
	collections map[string]*Collection
}

// NewRegistry creates a Registry. dimension is the vector(N) column width
// of every collection it creates. A nil logger falls back to slog.Default().
func NewRegistry(db querier, dimension int, logger *slog.Logger) (*Registry, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		db:          db,
		dimension:   dimension,
		logger:      logger,
		collections: make(map[string]*Collection),
	}, nil
}

// Collection returns the collection for ticker, creating its table and
// index if they do not exist yet. The DDL is idempotent, so a race between
// two callers creating the same collection is harmless.
func (r *Registry) Collection(ctx context.Context, ticker string) (*Collection, error) {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	c, ok := r.collections[t]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	table := tableForTicker(t)
	if err := r.createTable(ctx, table); err != nil {
		return nil, fmt.Errorf("creating collection for %s: %w", t, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check under the write lock; another goroutine may have won.
	if c, ok := r.collections[t]; ok {
		return c, nil
	}
	c = &Collection{db: r.db, ticker: t, table: table, dimension: r.dimension}
	r.collections[t] = c
	r.logger.Debug("collection ready", "ticker", t, "table", table)
	return c, nil
}

// Existing returns the collection for ticker only if its table already
// exists. Returns ErrNoCollection for tickers that were never ingested.
func (r *Registry) Existing(ctx context.Context, ticker string) (*Collection, error) {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	c, ok := r.collections[t]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	table := tableForTicker(t)
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT to_regclass($1) IS NOT NULL`, table,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking collection for %s: %w", t, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNoCollection, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.collections[t]; ok {
		return c, nil
	}
	c = &Collection{db: r.db, ticker: t, table: table, dimension: r.dimension}
	r.collections[t] = c
	return c, nil
}

// Tickers lists the normalized tickers that have a collection table.
// The ticker is read back from the stored rows, so tickers whose table
// name is lossy (MOG-A and MOG.A both map to chunks_mog_a) still list
// exactly as ingested; only empty collections fall back to deriving the
// ticker from the table name.
func (r *Registry) Tickers(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT tablename FROM pg_tables
		 WHERE schemaname = 'public' AND tablename LIKE 'chunks\_%'
		 ORDER BY tablename`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, fmt.Errorf("scanning collection name: %w", err)
		}
		if safeTableName(table) {
			tables = append(tables, table)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collections: %w", err)
	}
	rows.Close()

	tickers := make([]string, 0, len(tables))
	for _, table := range tables {
		var ticker string
		err := r.db.QueryRow(ctx,
			fmt.Sprintf(`SELECT ticker FROM %s LIMIT 1`, table),
		).Scan(&ticker)
		switch {
		case err == nil:
			tickers = append(tickers, ticker)
		case errors.Is(err, pgx.ErrNoRows):
			tickers = append(tickers, tickerFromTable(table))
		default:
			return nil, fmt.Errorf("reading ticker from %s: %w", table, err)
		}
	}
	return tickers, nil
}

func (r *Registry) createTable(ctx context.Context, table string) error {
	// table comes from tableForTicker and contains only [a-z0-9_].
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		filing_id UUID NOT NULL,
		ticker TEXT NOT NULL,
		fiscal_year INTEGER NOT NULL DEFAULT 0,
		accession TEXT NOT NULL DEFAULT '',
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%d) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (filing_id, chunk_index)
	)`, table, r.dimension)
	if _, err := r.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}

	idx := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
		 USING hnsw (embedding vector_cosine_ops)`,
		table, table,
	)
	if _, err := r.db.Exec(ctx, idx); err != nil {
		return fmt.Errorf("creating index on %s: %w", table, err)
	}
	return nil
}

// safeTableName reports whether name stays within tableForTicker's output
// alphabet. Tables with other characters were not created by the registry
// and are never interpolated into SQL.
func safeTableName(name string) bool {
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

// tickerFromTable approximates the inverse of tableForTicker; it is only
// the fallback for collections with no rows to read the ticker from.
// '_' maps back to '.', which is correct for class suffixes like BRK.B.
func tickerFromTable(table string) string {
	t := table[len("chunks_"):]
	t = strings.ReplaceAll(t, "_", ".")
	return strings.ToUpper(t)
}
