package embed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 4

// mockEmbedder implements ai.Embedder for testing. It returns a
// deterministic vector per input text so order preservation can be asserted.
type mockEmbedder struct {
	mu         sync.Mutex
	callCount  int
	batchSizes []int
	failFirst  int   // fail this many calls before succeeding
	embedErr   error // error returned by failing calls
	dimension  int   // dimension of returned vectors
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.mu.Lock()
	m.callCount++
	call := m.callCount
	m.batchSizes = append(m.batchSizes, len(req.Input))
	m.mu.Unlock()

	if call <= m.failFirst {
		return nil, m.embedErr
	}

	dim := m.dimension
	if dim == 0 {
		dim = testDimension
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		vec := vectorForText(doc.Content[0].Text, dim)
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}

// vectorForText derives a deterministic vector from the text content.
func vectorForText(text string, dim int) []float32 {
	vec := make([]float32, dim)
	for i := range vec {
		var sum float32
		for _, r := range text {
			sum += float32(r)
		}
		vec[i] = sum + float32(i)
	}
	return vec
}

func testConfig() Config {
	return Config{
		Dimension:       testDimension,
		BatchSize:       100,
		Concurrency:     4,
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestEmbedTextsPreservesOrder(t *testing.T) {
	mock := &mockEmbedder{}
	cfg := testConfig()
	cfg.BatchSize = 3 // force several batches
	client := New(mock, cfg, nil)

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = "chunk " + strconv.Itoa(i)
	}

	vectors, err := client.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	for i, text := range texts {
		assert.Equal(t, vectorForText(text, testDimension), vectors[i],
			"vector %d must correspond to input %d", i, i)
	}
}

func TestEmbedTextsBatchSizeLimit(t *testing.T) {
	mock := &mockEmbedder{}
	cfg := testConfig()
	cfg.BatchSize = 4
	client := New(mock, cfg, nil)

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = strconv.Itoa(i)
	}

	_, err := client.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)

	total := 0
	for _, size := range mock.batchSizes {
		assert.LessOrEqual(t, size, 4)
		total += size
	}
	assert.Equal(t, 10, total)
}

func TestEmbedTextsEmpty(t *testing.T) {
	client := New(&mockEmbedder{}, testConfig(), nil)

	vectors, err := client.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedTextsRetriesTransientErrors(t *testing.T) {
	mock := &mockEmbedder{
		failFirst: 2,
		embedErr:  errors.New("googleapi: Error 429: rate limit exceeded"),
	}
	client := New(mock, testConfig(), nil)

	vectors, err := client.EmbedTexts(context.Background(), []string{"net revenue"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, 3, mock.callCount)
}

func TestEmbedTextsExhaustedRetries(t *testing.T) {
	mock := &mockEmbedder{
		failFirst: 100,
		embedErr:  errors.New("503 service unavailable"),
	}
	client := New(mock, testConfig(), nil)

	_, err := client.EmbedTexts(context.Background(), []string{"net revenue"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 3, mock.callCount) // 1 try + 2 retries
}

func TestEmbedTextsNonRetryableFailsFast(t *testing.T) {
	mock := &mockEmbedder{
		failFirst: 100,
		embedErr:  errors.New("400 invalid argument"),
	}
	client := New(mock, testConfig(), nil)

	_, err := client.EmbedTexts(context.Background(), []string{"net revenue"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 1, mock.callCount)
}

func TestEmbedTextsDimensionMismatch(t *testing.T) {
	mock := &mockEmbedder{dimension: testDimension + 1}
	client := New(mock, testConfig(), nil)

	_, err := client.EmbedTexts(context.Background(), []string{"net revenue"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEmbedQuery(t *testing.T) {
	mock := &mockEmbedder{}
	client := New(mock, testConfig(), nil)

	vec, err := client.EmbedQuery(context.Background(), "total assets")
	require.NoError(t, err)
	assert.Equal(t, vectorForText("total assets", testDimension), vec)
}

func TestEmbedTextsContextCancellation(t *testing.T) {
	mock := &mockEmbedder{
		failFirst: 100,
		embedErr:  errors.New("timeout"),
	}
	cfg := testConfig()
	cfg.MaxRetries = 10
	cfg.InitialInterval = 50 * time.Millisecond
	client := New(mock, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.EmbedTexts(ctx, []string{"net revenue"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Rate Limit exceeded"), true},
		{errors.New("got HTTP 502 from upstream"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("invalid API key"), false},
		{fmt.Errorf("wrapped: %w", errors.New("quota exceeded")), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryableError(tt.err), "error: %v", tt.err)
	}
}
