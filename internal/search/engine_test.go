package search

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoprank/shoprank/internal/catalog"
	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/explain"
	"github.com/shoprank/shoprank/internal/store"
	"github.com/shoprank/shoprank/internal/telemetry"
)

func TestEngine_Search_RanksByTextSimilarityWhenFeaturesAreFlat(t *testing.T) {
	// Given: an engine whose non-text features are identical for every product
	e := newFixtureEngine(t)

	// When: searching "wireless headphones" with pool 100 and top 5
	resp, err := e.Search(context.Background(), Request{Query: "wireless headphones", PoolSize: 100, TopK: 5})
	require.NoError(t, err)

	// Then: results follow text similarity
	assert.Equal(t, []string{"P0001", "P0002", "P0004", "P0003"}, ids(resp.Results))
	assert.Equal(t, 4, resp.TotalResults)

	// And: the top result has the maximum text similarity
	top := resp.Results[0].ScoreBreakdown.TextSimilarity
	for _, r := range resp.Results {
		assert.LessOrEqual(t, r.ScoreBreakdown.TextSimilarity, top)
	}

	// And: the inferred Electronics intent added the category bonus
	assert.InDelta(t, 0.825, resp.Results[0].FinalScore, 1e-9)
	assert.Equal(t, 1.0, resp.Results[0].ScoreBreakdown.CategoryMatch)
	assert.InDelta(t, 0.325, resp.Results[3].FinalScore, 1e-9)

	// And: ranks are 1-based and explanations were not requested
	for i, r := range resp.Results {
		assert.Equal(t, i+1, r.Rank)
		assert.Nil(t, r.Explanation)
	}
}

func TestEngine_Search_TopKTruncates(t *testing.T) {
	e := newFixtureEngine(t)

	resp, err := e.Search(context.Background(), Request{Query: "headphones", TopK: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"P0001", "P0002"}, ids(resp.Results))
}

func TestEngine_Search_CategoryFilterOverridesIntent(t *testing.T) {
	// Given: a query that infers Electronics
	e := newFixtureEngine(t)

	// When: filtering to Clothing
	resp, err := e.Search(context.Background(), Request{Query: "wireless headphones", Category: "Clothing"})
	require.NoError(t, err)

	// Then: only Clothing remains and it gets the category match
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "P0003", resp.Results[0].ID)
	assert.Equal(t, 1.0, resp.Results[0].ScoreBreakdown.CategoryMatch)
}

func TestEngine_Search_WithExplanations(t *testing.T) {
	e := newFixtureEngine(t, WithExplainer(explain.TemplateExplainer{}))

	resp, err := e.Search(context.Background(), Request{Query: "wireless headphones", TopK: 3, Explain: true})
	require.NoError(t, err)

	require.Len(t, resp.Results, 3)
	for _, r := range resp.Results {
		require.NotNil(t, r.Explanation)
		assert.NotEmpty(t, r.Explanation.Short)
		assert.LessOrEqual(t, len(r.Explanation.Highlights), 4)
	}
	assert.Contains(t, resp.Results[0].Explanation.Short, "Ranked #1 because it closely matches your search 'wireless headphones'")
}

func TestEngine_Search_InvalidInput(t *testing.T) {
	e := newFixtureEngine(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"empty query", Request{Query: "   "}},
		{"top_k too large", Request{Query: "x", TopK: 101}},
		{"negative top_k", Request{Query: "x", TopK: -1}},
		{"negative pool", Request{Query: "x", PoolSize: -5}},
		{"zero budget", Request{Query: "x", Budget: ptr(0)}},
		{"NaN budget", Request{Query: "x", Budget: ptr(math.NaN())}},
		{"infinite budget", Request{Query: "x", Budget: ptr(math.Inf(1))}},
		{"NaN weight", Request{Query: "x", Weights: map[string]float64{WeightTextSimilarity: math.NaN()}}},
		{"infinite weight", Request{Query: "x", Weights: map[string]float64{WeightTextSimilarity: math.Inf(1)}}},
		{"unknown weight", Request{Query: "x", Weights: map[string]float64{"color": 1}}},
		{"negative weight", Request{Query: "x", Weights: map[string]float64{WeightRating: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Search(context.Background(), tt.req)
			assert.ErrorIs(t, err, shoperrors.ErrInvalidInput)
		})
	}
}

func TestEngine_Search_RetrievalUnavailable(t *testing.T) {
	products := fixtureProducts()
	cat, err := catalog.New(products, flatFeatures(products), catalog.NewMapping(products), fixtureVectors())
	require.NoError(t, err)

	t.Run("index failure", func(t *testing.T) {
		// Given: an index that cannot be reached
		metrics := telemetry.NewMetrics()
		e, err := NewEngine(cat, &fakeEmbedder{def: []float32{1, 0}}, failingIndex{}, DefaultEngineConfig(), WithMetrics(metrics))
		require.NoError(t, err)

		// When: searching
		resp, err := e.Search(context.Background(), Request{Query: "headphones"})

		// Then: the request fails instead of returning an empty list
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, shoperrors.ErrRetrievalUnavailable)
	})

	t.Run("embedder failure", func(t *testing.T) {
		idx, err := store.NewFlatIndexFrom(cat.Embeddings())
		require.NoError(t, err)
		e, err := NewEngine(cat, &fakeEmbedder{err: errors.New("ollama down")}, idx, DefaultEngineConfig())
		require.NoError(t, err)

		_, err = e.Search(context.Background(), Request{Query: "headphones"})

		assert.ErrorIs(t, err, shoperrors.ErrRetrievalUnavailable)
		assert.True(t, shoperrors.IsRetryable(err))
	})
}

func TestEngine_Search_RecordsQueryStats(t *testing.T) {
	stats := telemetry.NewQueryStats(telemetry.QueryStatsConfig{})
	e := newFixtureEngine(t, WithQueryStats(stats))

	_, err := e.Search(context.Background(), Request{Query: "cheap headphones"})
	require.NoError(t, err)
	_, err = e.Search(context.Background(), Request{Query: ""})
	require.Error(t, err)

	snap := stats.Snapshot()
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.FailedQueries)
	assert.Equal(t, int64(1), snap.PriceIntents["budget"])
	assert.Equal(t, int64(1), snap.CategoryIntents["Electronics"])
}

func TestEngine_Product(t *testing.T) {
	e := newFixtureEngine(t)

	p, err := e.Product("P0002")
	require.NoError(t, err)
	assert.Equal(t, "JBL Bluetooth Speaker", p.Title)

	_, err = e.Product("P9999")
	assert.ErrorIs(t, err, shoperrors.ErrNotFound)
}

func TestEngine_CategoriesAndStats(t *testing.T) {
	e := newFixtureEngine(t)

	cats := e.Categories()
	assert.Equal(t, []string{"Clothing", "Electronics"}, cats.Categories)
	assert.Equal(t, []string{"Headphones", "Shoes", "Speakers"}, cats.Subcategories)

	stats := e.Stats()
	assert.Equal(t, 4, stats.TotalProducts)
	assert.Equal(t, 4, stats.IndexSize)
	assert.Equal(t, 2, stats.EmbeddingDimension)
}

func TestNewEngine_NilDependencies(t *testing.T) {
	_, err := NewEngine(nil, &fakeEmbedder{}, failingIndex{}, DefaultEngineConfig())
	assert.ErrorIs(t, err, ErrNilDependency)
}
