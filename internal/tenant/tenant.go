// Package tenant manages per-ticker vector collections backed by
// PostgreSQL + pgvector. Each ticker gets its own table so that filings
// from one company can never leak into another company's retrieval results.
package tenant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidTicker indicates the ticker symbol failed validation.
	ErrInvalidTicker = errors.New("invalid ticker symbol")

	// ErrTenantMismatch indicates a record's ticker does not match the
	// collection it was written to or read from.
	ErrTenantMismatch = errors.New("record ticker does not match collection")

	// ErrNoCollection indicates no collection exists for the ticker,
	// i.e. the company has never been ingested.
	ErrNoCollection = errors.New("no collection for ticker")
)

// maxTickerLen bounds ticker symbols; NYSE/Nasdaq symbols are at most
// five characters plus an optional class suffix (e.g. BRK.B).
const maxTickerLen = 10

// Record is one embedded chunk belonging to a single ticker's collection.
type Record struct {
	FilingID   uuid.UUID
	Ticker     string
	FiscalYear int
	Accession  string
	ChunkIndex int
	Text       string
	Embedding  []float32
}

// Source is one retrieved chunk with its similarity to the query.
// Rank is 1-based and doubles as the [Source N] citation marker number.
// Similarity is cosine similarity in [-1, 1]; higher is closer.
type Source struct {
	Rank       int
	Ticker     string
	FilingID   uuid.UUID
	FiscalYear int
	Accession  string
	ChunkIndex int
	Text       string
	Similarity float64
}

// NormalizeTicker trims and uppercases a ticker symbol and validates it.
// Allowed characters are A-Z, 0-9, '.' and '-'.
func NormalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" || len(t) > maxTickerLen {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}
	for _, r := range t {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
		}
	}
	return t, nil
}

// tableForTicker maps a normalized ticker to its collection table name,
// e.g. "AAPL" -> "chunks_aapl", "BRK.B" -> "chunks_brk_b".
//
// SECURITY NOTE (SQL injection prevention): table names cannot be bound as
// query parameters, so they are interpolated into SQL. This is safe only
// because NormalizeTicker restricts the input alphabet and this function
// maps every non-alphanumeric rune to '_'.
func tableForTicker(ticker string) string {
	var b strings.Builder
	b.WriteString("chunks_")
	for _, r := range strings.ToLower(ticker) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
