// Package chunker splits extracted filing text into overlapping,
// fixed-size segments with stable ordering.
//
// Chunk boundaries depend only on the input text and the (maxSize, overlap)
// parameters: the same input always produces the same chunks, which is what
// keeps citation back-references stable across re-runs.
package chunker

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize indicates maxSize is not strictly greater than overlap.
	ErrInvalidSize = errors.New("max size must be greater than overlap")

	// ErrInvalidOverlap indicates a negative overlap.
	ErrInvalidOverlap = errors.New("overlap must not be negative")
)

// Chunk is a contiguous slice of a filing's extracted text.
//
// Index is 0-based and strictly increasing with no gaps within one filing.
// Start and End are rune offsets into the source text. The text is recorded
// as-is, never altered, so offsets always map back to the source; consumers
// that need to stitch chunks together must rely on the offsets rather than
// the configured overlap.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// Split walks text in windows of up to maxSize characters, advancing the
// window start by maxSize-overlap each step, until the window start reaches
// the text length. The final window is truncated to the remaining text.
// Empty text yields no chunks.
func Split(text string, maxSize, overlap int) ([]Chunk, error) {
	if overlap < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOverlap, overlap)
	}
	if maxSize <= overlap {
		return nil, fmt.Errorf("%w: maxSize=%d overlap=%d", ErrInvalidSize, maxSize, overlap)
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	// Overlapping windows stop one character short of maxSize; the window
	// start still advances by maxSize-overlap. Zero overlap tiles the text
	// exactly, with no gap between consecutive chunks.
	step := maxSize - overlap
	width := maxSize
	if overlap > 0 {
		width--
	}

	chunks := make([]Chunk, 0, n/step+1)
	for start := 0; start < n; start += step {
		end := start + width
		if end > n {
			end = n
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
	}

	return chunks, nil
}
