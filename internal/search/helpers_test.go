package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shoprank/shoprank/internal/catalog"
	"github.com/shoprank/shoprank/internal/store"
)

// fakeEmbedder maps every query to a fixed vector unless overridden.
type fakeEmbedder struct {
	vectors map[string][]float32
	def     []float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.def, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                  { return len(f.def) }
func (f *fakeEmbedder) ModelName() string                { return "fake" }
func (f *fakeEmbedder) Available(_ context.Context) bool { return f.err == nil }
func (f *fakeEmbedder) Close() error                     { return nil }

// failingIndex always fails to search.
type failingIndex struct{}

func (failingIndex) Search(context.Context, []float32, int) ([]store.Neighbor, error) {
	return nil, errors.New("connection refused")
}
func (failingIndex) Add(context.Context, []int, [][]float32) error { return nil }
func (failingIndex) Len() int                                      { return 0 }
func (failingIndex) Dimensions() int                               { return 2 }
func (failingIndex) Close() error                                  { return nil }

func fixtureProducts() []catalog.Product {
	return []catalog.Product{
		{ID: "P0001", Title: "Sony Wireless Headphones", Category: "Electronics", Subcategory: "Headphones",
			Brand: "Sony", Price: 299, Rating: 4.8, ReviewCount: 900, InStock: true},
		{ID: "P0002", Title: "JBL Bluetooth Speaker", Category: "Electronics", Subcategory: "Speakers",
			Brand: "JBL", Price: 99, Rating: 4.1, ReviewCount: 300, InStock: true},
		{ID: "P0003", Title: "Nike Running Shoes", Category: "Clothing", Subcategory: "Shoes",
			Brand: "Nike", Price: 120, Rating: 4.4, ReviewCount: 500, InStock: true},
		{ID: "P0004", Title: "Anker Earbuds", Category: "Electronics", Subcategory: "Headphones",
			Brand: "Anker", Price: 25, Rating: 3.9, ReviewCount: 80, InStock: false},
	}
}

// Similarities to the query vector [1,0] are 1, 0.8, 0, 0.6.
func fixtureVectors() [][]float32 {
	return [][]float32{{1, 0}, {0.8, 0.6}, {0, 1}, {0.6, 0.8}}
}

// flatFeatures gives every product identical non-text features.
func flatFeatures(products []catalog.Product) map[string]catalog.FeatureRecord {
	out := make(map[string]catalog.FeatureRecord, len(products))
	for _, p := range products {
		out[p.ID] = catalog.FeatureRecord{
			PriceScore: 0.5, PopularityScore: 0.5, RatingScore: 0.5, ReviewTrustScore: 0.5, InStock: 1,
		}
	}
	return out
}

func newFixtureEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	products := fixtureProducts()
	cat, err := catalog.New(products, flatFeatures(products), catalog.NewMapping(products), fixtureVectors())
	require.NoError(t, err)

	idx, err := store.NewFlatIndexFrom(cat.Embeddings())
	require.NoError(t, err)

	e, err := NewEngine(cat, &fakeEmbedder{def: []float32{1, 0}}, idx, DefaultEngineConfig(), opts...)
	require.NoError(t, err)
	return e
}

func ids(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}
