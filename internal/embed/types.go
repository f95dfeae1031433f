// Package embed provides text embedders for the vector index: a hashed
// static embedder that needs no network, and an LRU cache wrapper for
// remote embedders such as the Gemini client.
package embed

import (
	"context"
	"math"
)

const (
	// StaticDimensions is the embedding dimension of StaticEmbedder.
	StaticDimensions = 256

	// DefaultBatchSize bounds one remote embedding request.
	DefaultBatchSize = 32
)

// Embedder generates vector embeddings for text.
// The vector index and the query path must use the same implementation,
// since vectors from different models are not comparable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// ModelName is recorded with the vector index and shown by status.
	ModelName() string
	Close() error
}

// normalizeVector returns a unit-length copy of v; a zero vector is
// returned as is.
func normalizeVector(v []float32) []float32 {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	if sq == 0 {
		return v
	}
	scale := 1 / math.Sqrt(sq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * scale)
	}
	return out
}
