package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFilingSentence(t *testing.T) {
	// 25-character input, maxSize=15, overlap=5: window starts advance by
	// 10, so the chunks begin at offsets 0, 10, and 20.
	chunks, err := Split("Revenue grew. Costs fell.", 15, 5)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	want := []struct {
		index int
		start int
		end   int
		text  string
	}{
		{0, 0, 14, "Revenue grew. "},
		{1, 10, 24, "ew. Costs fell"},
		{2, 20, 25, "fell."},
	}
	for i, w := range want {
		assert.Equal(t, w.index, chunks[i].Index)
		assert.Equal(t, w.start, chunks[i].Start)
		assert.Equal(t, w.end, chunks[i].End)
		assert.Equal(t, w.text, chunks[i].Text)
	}
}

func TestSplitEmptyText(t *testing.T) {
	chunks, err := Split("", 100, 10)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitInvalidParams(t *testing.T) {
	tests := []struct {
		name    string
		maxSize int
		overlap int
		wantErr error
	}{
		{"overlap equals size", 10, 10, ErrInvalidSize},
		{"overlap exceeds size", 10, 20, ErrInvalidSize},
		{"zero size", 0, 0, ErrInvalidSize},
		{"negative overlap", 10, -1, ErrInvalidOverlap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split("some text", tt.maxSize, tt.overlap)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSplitShortText(t *testing.T) {
	chunks, err := Split("tiny", 100, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "tiny", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 4, chunks[0].End)
}

func TestSplitIndicesContiguous(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50)
	chunks, err := Split(text, 128, 32)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "indices must be contiguous from 0")
		assert.LessOrEqual(t, c.End-c.Start, 128, "chunk length must not exceed max size")
		assert.Equal(t, c.End-c.Start, len([]rune(c.Text)))
	}
}

// TestSplitReconstruction verifies that concatenating chunk texts with their
// overlapping prefixes removed (as determined by the recorded offsets)
// reproduces the original text exactly.
func TestSplitReconstruction(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		maxSize int
		overlap int
	}{
		{"no overlap", "abcdefghijklmnopqrstuvwxyz", 5, 0},
		{"small overlap", "abcdefghijklmnopqrstuvwxyz", 8, 3},
		{"large overlap", strings.Repeat("filing text ", 40), 64, 48},
		{"single char windows", "hello", 1, 0},
		{"multibyte runes", "営業収益は増加した。費用は減少した。", 7, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split(tt.text, tt.maxSize, tt.overlap)
			require.NoError(t, err)

			var sb strings.Builder
			prevEnd := 0
			for _, c := range chunks {
				require.LessOrEqual(t, c.Start, prevEnd, "chunks must not leave gaps")
				runes := []rune(c.Text)
				sb.WriteString(string(runes[prevEnd-c.Start:]))
				prevEnd = c.End
			}
			assert.Equal(t, tt.text, sb.String())
		})
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("Net revenue was $1.2 billion. ", 30)
	a, err := Split(text, 100, 20)
	require.NoError(t, err)
	b, err := Split(text, 100, 20)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
