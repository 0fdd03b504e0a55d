package store

import (
	"context"
	"fmt"
)

// Options selects and configures an index backend.
type Options struct {
	Backend string
	Path    string
	HNSW    HNSWConfig
	Qdrant  QdrantConfig
}

// Open returns the configured index. The flat backend is built from vectors;
// hnsw loads from Path; qdrant connects to an existing collection.
func Open(ctx context.Context, opts Options, vectors [][]float32) (VectorIndex, error) {
	switch opts.Backend {
	case BackendFlat:
		return NewFlatIndexFrom(vectors)
	case BackendHNSW, "":
		return LoadHNSWIndex(opts.Path, opts.HNSW.EfSearch)
	case BackendQdrant:
		idx, err := NewQdrantIndex(opts.Qdrant)
		if err != nil {
			return nil, err
		}
		if err := idx.EnsureCollection(ctx); err != nil {
			idx.Close()
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", opts.Backend)
	}
}
