// Package embed turns text into fixed-dimension, unit-normalised vectors.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// StaticDimensions is the default dimension of the static embedder.
	StaticDimensions = 256

	// DefaultTimeout bounds a single embedding service call.
	DefaultTimeout = 10 * time.Second

	// DefaultBatchSize is the number of texts sent per batch request.
	DefaultBatchSize = 32
)

// Embedder generates vector embeddings for text. Implementations must be
// deterministic for identical input and return unit-length vectors.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder can serve requests.
	Available(ctx context.Context) bool

	Close() error
}

// Normalize returns v scaled to unit length. Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
