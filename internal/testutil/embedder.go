package testutil

import (
	"context"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// MockEmbedder implements ai.Embedder with deterministic vectors derived
// from the input text, so similarity ordering is stable across test runs
// and identical texts always embed identically.
type MockEmbedder struct {
	Dimension int
	Err       error // returned by every Embed call when set

	mu        sync.Mutex
	callCount int
}

// NewMockEmbedder creates a MockEmbedder producing vectors of the given dimension.
func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{Dimension: dimension}
}

func (m *MockEmbedder) Name() string { return "test-embedder" }

func (m *MockEmbedder) Register(r api.Registry) {}

// Embed returns one deterministic vector per input document.
func (m *MockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		if len(doc.Content) > 0 {
			text = doc.Content[0].Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: DeterministicVector(text, m.Dimension),
		})
	}
	return resp, nil
}

// CallCount reports how many Embed calls the mock has served.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// DeterministicVector derives a unit-ish vector from text. Texts sharing a
// prefix produce nearby vectors, which is close enough to real embedding
// behavior for retrieval ordering tests.
func DeterministicVector(text string, dimension int) []float32 {
	vec := make([]float32, dimension)
	if len(text) == 0 {
		vec[0] = 1
		return vec
	}
	for i, r := range text {
		vec[(i+int(r))%dimension] += float32(r%97) / 97
	}
	// Normalize so cosine distance behaves.
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		inv := 1 / sqrt32(norm)
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

func sqrt32(x float32) float32 {
	// Newton iterations are plenty for test vectors.
	z := x
	for range 8 {
		z = (z + x/z) / 2
	}
	return z
}
