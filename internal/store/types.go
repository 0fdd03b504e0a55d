// Package store provides the vector similarity indexes that back candidate
// retrieval and similar-item lookups. Vectors are keyed by the catalog's
// integer product index.
package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// Backend names for index selection.
const (
	BackendHNSW   = "hnsw"
	BackendFlat   = "flat"
	BackendQdrant = "qdrant"
)

// Neighbor is one search hit.
type Neighbor struct {
	// Index is the catalog product index.
	Index int

	// Similarity is the cosine similarity in [-1, 1].
	Similarity float64
}

// VectorIndex is a nearest-neighbour index over unit-normalised vectors.
// Search must be safe for concurrent use; Add is only called by the offline builder.
type VectorIndex interface {
	// Search returns up to k neighbours ordered by descending similarity.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)

	// Add inserts vectors under the given product indices.
	Add(ctx context.Context, indices []int, vectors [][]float32) error

	// Len returns the number of indexed vectors.
	Len() int

	// Dimensions returns the vector dimension.
	Dimensions() int

	Close() error
}

// Persistent is implemented by indexes that live in local files.
type Persistent interface {
	Save(path string) error
}

// ErrDimensionMismatch indicates a vector of the wrong size.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'shoprank build' after changing the embedder)", e.Expected, e.Got)
}

// ErrClosed is returned by operations on a closed index.
var ErrClosed = fmt.Errorf("index is closed")

func checkAdd(dims int, indices []int, vectors [][]float32) error {
	if len(indices) != len(vectors) {
		return fmt.Errorf("indices and vectors length mismatch: %d vs %d", len(indices), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != dims {
			return ErrDimensionMismatch{Expected: dims, Got: len(v)}
		}
		if indices[i] < 0 {
			return fmt.Errorf("negative index %d", indices[i])
		}
	}
	return nil
}

// sortNeighbors orders by descending similarity; ties go to the lower index
// so results are reproducible.
func sortNeighbors(ns []Neighbor) {
	slices.SortStableFunc(ns, func(a, b Neighbor) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
}
