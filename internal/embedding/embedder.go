// Package embedding provides text embedding providers: an OpenAI-compatible HTTP client,
// a local ONNX model, a deterministic mock, and caching/retry wrappers.
package embedding

import "context"

// Embedder produces a fixed-dimension vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
