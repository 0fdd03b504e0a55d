package search

import (
	"context"
	"log/slog"

	"github.com/shoprank/shoprank/internal/catalog"
	"github.com/shoprank/shoprank/internal/embed"
	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/store"
)

// Retriever fetches the nearest-neighbour candidate pool for a query.
type Retriever struct {
	embedder embed.Embedder
	index    store.VectorIndex
	catalog  *catalog.Catalog
}

// NewRetriever creates a retriever over the given collaborators.
func NewRetriever(embedder embed.Embedder, index store.VectorIndex, cat *catalog.Catalog) *Retriever {
	return &Retriever{embedder: embedder, index: index, catalog: cat}
}

// Retrieve embeds the query and returns up to poolSize candidates in index order.
func (r *Retriever) Retrieve(ctx context.Context, query string, poolSize int) ([]Candidate, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, shoperrors.RetrievalUnavailable("embedding provider failed", err)
	}
	return r.RetrieveVector(ctx, vec, poolSize)
}

// RetrieveVector searches the index with an embedded query. Any index failure
// is a RetrievalUnavailable error; an empty pool is never substituted.
func (r *Retriever) RetrieveVector(ctx context.Context, vec []float32, poolSize int) ([]Candidate, error) {
	neighbors, err := r.index.Search(ctx, vec, poolSize)
	if err != nil {
		return nil, shoperrors.RetrievalUnavailable("vector index search failed", err)
	}

	out := make([]Candidate, 0, len(neighbors))
	for _, n := range neighbors {
		id, ok := r.catalog.IDAt(n.Index)
		if !ok {
			// The index and mapping were built together, so this is a build defect.
			slog.Warn("retrieval_unknown_index", slog.Int("index", n.Index))
			continue
		}
		p, _ := r.catalog.Product(id)
		out = append(out, Candidate{
			ProductID:  id,
			Index:      n.Index,
			Product:    p,
			Similarity: n.Similarity,
		})
	}
	return out, nil
}

// FilterFunc reports whether a candidate survives filtering.
type FilterFunc func(c *Candidate) bool

// CategoryFilter keeps candidates in the given category.
func CategoryFilter(category string) FilterFunc {
	return func(c *Candidate) bool {
		return c.Product.Category == category
	}
}

// ApplyFilters keeps candidates matching every filter, preserving order.
func ApplyFilters(cands []Candidate, filters ...FilterFunc) []Candidate {
	if len(filters) == 0 {
		return cands
	}
	out := make([]Candidate, 0, len(cands))
	for i := range cands {
		keep := true
		for _, f := range filters {
			if !f(&cands[i]) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, cands[i])
		}
	}
	return out
}
