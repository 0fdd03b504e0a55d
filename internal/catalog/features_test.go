package catalog

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFeatures_Normalisation(t *testing.T) {
	// Given: prices 10..110, ratings 3..5, review counts 0..e^2-1
	products := []Product{
		{ID: "a", Price: 10, Rating: 3.0, ReviewCount: 0, InStock: true, PopularityScore: 0.4},
		{ID: "b", Price: 60, Rating: 4.0, ReviewCount: 6, InStock: false, PopularityScore: 0.9},
		{ID: "c", Price: 110, Rating: 5.0, ReviewCount: 100, InStock: true, PopularityScore: 0.1},
	}

	// When
	f := ComputeFeatures(products)

	// Then: price is inverted, rating is direct
	assert.Equal(t, 1.0, f["a"].PriceScore)
	assert.Equal(t, 0.5, f["b"].PriceScore)
	assert.Equal(t, 0.0, f["c"].PriceScore)
	assert.Equal(t, 0.0, f["a"].RatingScore)
	assert.Equal(t, 0.5, f["b"].RatingScore)
	assert.Equal(t, 1.0, f["c"].RatingScore)

	// And: review trust is log-normalised
	want := Round4(math.Log1p(6) / math.Log1p(100))
	assert.Equal(t, want, f["b"].ReviewTrustScore)
	assert.Equal(t, 1.0, f["c"].ReviewTrustScore)

	// And: popularity and stock copy through
	assert.Equal(t, 0.9, f["b"].PopularityScore)
	assert.Equal(t, 0.0, f["b"].InStock)
	assert.Equal(t, 1.0, f["a"].InStock)
}

func TestComputeFeatures_ZeroRangeIsNeutral(t *testing.T) {
	products := []Product{
		{ID: "a", Price: 20, Rating: 4, ReviewCount: 10},
		{ID: "b", Price: 20, Rating: 4, ReviewCount: 10},
	}

	f := ComputeFeatures(products)

	for _, id := range []string{"a", "b"} {
		assert.Equal(t, 0.5, f[id].PriceScore)
		assert.Equal(t, 0.5, f[id].RatingScore)
		assert.Equal(t, 0.5, f[id].ReviewTrustScore)
	}
}

func TestComputeFeatures_Empty(t *testing.T) {
	assert.Empty(t, ComputeFeatures(nil))
}

func TestEmbeddingText(t *testing.T) {
	p := Product{Title: "Bose Speaker", Category: "Electronics", Subcategory: "Speakers",
		Brand: "Bose", Description: "Portable sound."}
	assert.Equal(t, "Bose Speaker Electronics Speakers Bose Portable sound.", EmbeddingText(p))
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 0.1235, Round4(0.12346))
	assert.Equal(t, 0.5, Round4(0.5))
	assert.Equal(t, 0.1234, Round4(0.12341))
	assert.Equal(t, -0.1235, Round4(-0.12346))
}
