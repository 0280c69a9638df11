package embedding

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/movierec/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and offline use. Unless a text has a
// fixed vector or a forced error, it returns a unit vector derived from the text hash, so
// the same text always gets the same embedding.
type MockEmbedder struct {
	dimensions int
	calls      atomic.Int64
	mu         sync.RWMutex
	fixed      map[string][]float32
	failures   map[string]error
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{
		dimensions: dimensions,
		fixed:      make(map[string][]float32),
		failures:   make(map[string]error),
	}
}

// SetVector makes Embed(text) return v.
func (e *MockEmbedder) SetVector(text string, v []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fixed[text] = v
}

// FailOn makes Embed(text) return err.
func (e *MockEmbedder) FailOn(text string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[text] = err
}

// Calls returns how many times Embed has been called.
func (e *MockEmbedder) Calls() int {
	return int(e.calls.Load())
}

// Embed returns the configured or hash-derived embedding for text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, classifyContextErr(ctx, err)
	}
	e.mu.RLock()
	err, failing := e.failures[text]
	fixed, hasFixed := e.fixed[text]
	e.mu.RUnlock()
	if failing {
		return nil, err
	}
	if hasFixed {
		return append([]float32(nil), fixed...), nil
	}
	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
