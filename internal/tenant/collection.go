package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// undefinedTableCode is the PostgreSQL error code for a missing relation.
const undefinedTableCode = "42P01"

// Collection is one ticker's vector table. Obtain collections through a
// Registry; the zero value is not usable.
//
// Collection is safe for concurrent use by multiple goroutines.
type Collection struct {
	db        querier
	ticker    string
	table     string
	dimension int
}

// Ticker returns the normalized ticker this collection belongs to.
func (c *Collection) Ticker() string { return c.ticker }

// Insert writes records into the collection. Every record's ticker must
// match the collection's ticker and every embedding must have the
// collection's dimension; a violation rejects the whole batch before any
// row is written. The batch is inserted in a single transaction.
func (c *Collection) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	for i, rec := range records {
		if rec.Ticker != c.ticker {
			return fmt.Errorf("%w: record %d has ticker %q, collection is %q",
				ErrTenantMismatch, i, rec.Ticker, c.ticker)
		}
		if len(rec.Embedding) != c.dimension {
			return fmt.Errorf("record %d embedding has %d dimensions, want %d",
				i, len(rec.Embedding), c.dimension)
		}
	}

	batch := &pgx.Batch{}
	sql := fmt.Sprintf(
		`INSERT INTO %s (filing_id, ticker, fiscal_year, accession, chunk_index, content, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (filing_id, chunk_index) DO UPDATE
		 SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
		c.table,
	)
	for _, rec := range records {
		vec := pgvector.NewVector(rec.Embedding)
		batch.Queue(sql, rec.FilingID, rec.Ticker, rec.FiscalYear, rec.Accession,
			rec.ChunkIndex, rec.Text, &vec)
	}

	results := c.db.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for i := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting record %d into %s: %w", i, c.table, err)
		}
	}
	return nil
}

// Search returns up to topK sources ordered by cosine similarity
// descending, with chunk index as a deterministic tie-break. A missing
// table yields an empty result rather than an error, so callers racing a
// concurrent first ingestion see "nothing yet" instead of a failure.
func (c *Collection) Search(ctx context.Context, embedding []float32, topK int) ([]Source, error) {
	if len(embedding) != c.dimension {
		return nil, fmt.Errorf("query embedding has %d dimensions, want %d",
			len(embedding), c.dimension)
	}
	if topK <= 0 {
		return []Source{}, nil
	}

	vec := pgvector.NewVector(embedding)
	rows, err := c.db.Query(ctx, fmt.Sprintf(
		`SELECT filing_id, ticker, fiscal_year, accession, chunk_index, content,
		        1 - (embedding <=> $1) AS similarity
		 FROM %s
		 ORDER BY embedding <=> $1, chunk_index ASC
		 LIMIT $2`, c.table),
		&vec, topK,
	)
	if err != nil {
		if isUndefinedTable(err) {
			return []Source{}, nil
		}
		return nil, fmt.Errorf("searching %s: %w", c.table, err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		// Ticker is scanned from the stored row, not copied from the
		// collection, so downstream verification checks real data.
		var s Source
		if err := rows.Scan(&s.FilingID, &s.Ticker, &s.FiscalYear, &s.Accession,
			&s.ChunkIndex, &s.Text, &s.Similarity); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		s.Rank = len(sources) + 1
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return []Source{}, nil
		}
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return sources, nil
}

// Count returns the number of records in the collection. A missing table
// counts as zero.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var count int
	err := c.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.table),
	).Scan(&count)
	if err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("counting %s: %w", c.table, err)
	}
	return count, nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTableCode
}
