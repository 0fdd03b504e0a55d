package store

import (
	"context"
	"sync"

	"github.com/shoprank/shoprank/internal/embed"
)

// FlatIndex is an exact inner-product index. It scans every vector, which is
// fine for catalogs of a few thousand products and gives exact neighbours.
type FlatIndex struct {
	dims int

	mu      sync.RWMutex
	vectors map[int][]float32
	closed  bool
}

var _ VectorIndex = (*FlatIndex)(nil)

// NewFlatIndex creates an empty exact index.
func NewFlatIndex(dims int) *FlatIndex {
	return &FlatIndex{dims: dims, vectors: make(map[int][]float32)}
}

// NewFlatIndexFrom builds an exact index from vectors in index order.
func NewFlatIndexFrom(vectors [][]float32) (*FlatIndex, error) {
	dims := 0
	if len(vectors) > 0 {
		dims = len(vectors[0])
	}
	idx := NewFlatIndex(dims)
	indices := make([]int, len(vectors))
	for i := range indices {
		indices[i] = i
	}
	if err := idx.Add(context.Background(), indices, vectors); err != nil {
		return nil, err
	}
	return idx, nil
}

// Add inserts or replaces vectors.
func (f *FlatIndex) Add(_ context.Context, indices []int, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if err := checkAdd(f.dims, indices, vectors); err != nil {
		return err
	}
	for i, v := range vectors {
		f.vectors[indices[i]] = embed.Normalize(v)
	}
	return nil
}

// Search scans all vectors.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}
	if len(query) != f.dims {
		return nil, ErrDimensionMismatch{Expected: f.dims, Got: len(query)}
	}
	if k <= 0 {
		return []Neighbor{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := embed.Normalize(query)
	out := make([]Neighbor, 0, len(f.vectors))
	for idx, v := range f.vectors {
		out = append(out, Neighbor{Index: idx, Similarity: embed.Dot(q, v)})
	}
	sortNeighbors(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Len returns the number of vectors.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dims
}

// Close drops the vectors.
func (f *FlatIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.vectors = nil
	return nil
}
