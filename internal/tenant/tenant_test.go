package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"lowercase", "aapl", "AAPL", false},
		{"already upper", "MSFT", "MSFT", false},
		{"surrounding space", "  nvda ", "NVDA", false},
		{"class suffix", "brk.b", "BRK.B", false},
		{"hyphenated", "mog-a", "MOG-A", false},
		{"digits", "ba3", "BA3", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"too long", "ABCDEFGHIJK", "", true},
		{"sql injection attempt", "x; DROP TABLE", "", true},
		{"underscore", "a_b", "", true},
		{"unicode", "ÅAPL", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTicker(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTicker)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTableForTicker(t *testing.T) {
	tests := []struct {
		ticker string
		want   string
	}{
		{"AAPL", "chunks_aapl"},
		{"BRK.B", "chunks_brk_b"},
		{"MOG-A", "chunks_mog_a"},
		{"BA3", "chunks_ba3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tableForTicker(tt.ticker))
	}
}

func TestTickerFromTable(t *testing.T) {
	assert.Equal(t, "AAPL", tickerFromTable("chunks_aapl"))
	assert.Equal(t, "BRK.B", tickerFromTable("chunks_brk_b"))
}

func TestInsertRejectsForeignTicker(t *testing.T) {
	c := &Collection{ticker: "AAPL", table: "chunks_aapl", dimension: 3}

	err := c.Insert(context.Background(), []Record{
		{FilingID: uuid.New(), Ticker: "AAPL", ChunkIndex: 0, Text: "ok", Embedding: []float32{1, 0, 0}},
		{FilingID: uuid.New(), Ticker: "MSFT", ChunkIndex: 1, Text: "foreign", Embedding: []float32{0, 1, 0}},
	})

	assert.ErrorIs(t, err, ErrTenantMismatch)
}

func TestInsertRejectsWrongDimension(t *testing.T) {
	c := &Collection{ticker: "AAPL", table: "chunks_aapl", dimension: 3}

	err := c.Insert(context.Background(), []Record{
		{FilingID: uuid.New(), Ticker: "AAPL", ChunkIndex: 0, Text: "short", Embedding: []float32{1, 0}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}

func TestInsertEmptyBatchIsNoop(t *testing.T) {
	c := &Collection{ticker: "AAPL", table: "chunks_aapl", dimension: 3}
	assert.NoError(t, c.Insert(context.Background(), nil))
}
