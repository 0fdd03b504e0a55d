package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoprank/shoprank/internal/catalog"
	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/intent"
)

func ptr(v float64) *float64 { return &v }

func TestBudgetMatch(t *testing.T) {
	tests := []struct {
		name   string
		price  float64
		budget *float64
		want   float64
	}{
		{"no budget is neutral", 1000, nil, 0.5},
		{"within budget", 400, ptr(500), 1},
		{"at budget", 500, ptr(500), 1},
		{"half over", 750, ptr(500), 0.5},
		{"double the budget", 1000, ptr(500), 0},
		{"far over", 5000, ptr(500), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, BudgetMatch(tt.price, tt.budget), 1e-9)
		})
	}
}

func TestAdjustPrice(t *testing.T) {
	for _, s := range []float64{0, 0.2, 0.5, 0.8, 1} {
		// Budget never lowers the score.
		assert.GreaterOrEqual(t, AdjustPrice(s, intent.PriceBudget), s)
		assert.InDelta(t, s*1.5, AdjustPrice(s, intent.PriceBudget), 1e-12)

		// Premium is a single inversion.
		assert.InDelta(t, 1-s, AdjustPrice(s, intent.PricePremium), 1e-12)

		assert.Equal(t, s, AdjustPrice(s, intent.PriceNone))
	}
}

func TestEnrich_CategoryMatchAndBudget(t *testing.T) {
	// Given: the fixture catalog and all four candidates
	e := newFixtureEngine(t)
	var cands []Candidate
	for i, p := range fixtureProducts() {
		cands = append(cands, Candidate{ProductID: p.ID, Index: i, Product: p, Similarity: 0.5})
	}

	// When: enriching with an Electronics intent, budget pricing and a 100 budget
	out, err := Enrich(cands, e.Catalog(), EnrichParams{Category: "Electronics", Price: intent.PriceBudget, Budget: ptr(100)})
	require.NoError(t, err)

	// Then: category match follows the product category
	assert.Equal(t, []float64{1, 1, 0, 1}, []float64{out[0].CategoryMatch, out[1].CategoryMatch, out[2].CategoryMatch, out[3].CategoryMatch})

	// And: the budget boost is applied before clamping
	assert.InDelta(t, 0.75, out[0].PriceScore, 1e-12)

	// And: budget match decays with price
	assert.InDelta(t, 0.0, out[0].BudgetMatch, 1e-12) // 299 > 2*100
	assert.InDelta(t, 1.0, out[1].BudgetMatch, 1e-12) // 99 <= 100
	assert.InDelta(t, 0.8, out[2].BudgetMatch, 1e-12) // 120 is 20% over

	// And: retrieval similarity becomes text similarity
	assert.Equal(t, 0.5, out[3].TextSimilarity)
	assert.Equal(t, 1.0, out[3].InStockBonus)
}

func TestEnrich_MissingFeatures(t *testing.T) {
	e := newFixtureEngine(t)

	_, err := Enrich([]Candidate{{ProductID: "P9999"}}, e.Catalog(), EnrichParams{})

	assert.Equal(t, shoperrors.ErrCodeInternal, shoperrors.GetCode(err))
}

func baseCandidate() Candidate {
	return Candidate{
		TextSimilarity:  0.8,
		PriceScore:      0.6,
		PopularityScore: 0.7,
		RatingScore:     0.9,
		ReviewTrust:     0.4,
		InStockBonus:    1,
		BudgetMatch:     0.5,
	}
}

func TestScore_DefaultWeights(t *testing.T) {
	cands := []Candidate{baseCandidate()}

	Score(cands, DefaultWeights())

	// 0.4*0.8 + 0.2*0.6 + 0.2*0.7 + 0.1*0.9 + 0.05*0.4 + 0.05*1
	assert.InDelta(t, 0.74, cands[0].FinalScore, 1e-9)
	assert.Equal(t, 0.8, cands[0].Breakdown.TextSimilarity)
	assert.Equal(t, 0.0, cands[0].Breakdown.CategoryMatch)
}

func TestScore_ClampsBoostedPrice(t *testing.T) {
	c := baseCandidate()
	c.PriceScore = 0.9 * 1.5

	cands := []Candidate{c}
	Score(cands, DefaultWeights())

	assert.Equal(t, 1.0, cands[0].Breakdown.PriceScore)
	assert.InDelta(t, 0.32+0.2+0.14+0.09+0.02+0.05, cands[0].FinalScore, 1e-9)
}

func TestScore_CategoryBonusIsFixed(t *testing.T) {
	weightSets := []map[string]float64{
		nil,
		{WeightTextSimilarity: 0},
		{WeightTextSimilarity: 1, WeightPriceScore: 0, WeightPopularity: 0},
		{WeightRating: 2, WeightInStock: 0.5},
		{WeightBudgetMatch: 0.3},
	}
	for _, ws := range weightSets {
		w, err := DefaultWeights().Merge(ws)
		require.NoError(t, err)

		// Given: the same candidate with and without a category match
		without := baseCandidate()
		with := baseCandidate()
		with.CategoryMatch = 1
		cands := []Candidate{without, with}

		// When: scoring both
		Score(cands, w)

		// Then: the delta is exactly the bonus
		assert.InDelta(t, 0.10, cands[1].FinalScore-cands[0].FinalScore, 1e-9, "weights %v", ws)
		assert.Equal(t, 1.0, cands[1].Breakdown.CategoryMatch)
	}
}

func TestScore_Deterministic(t *testing.T) {
	a := []Candidate{baseCandidate(), baseCandidate()}
	b := []Candidate{baseCandidate(), baseCandidate()}
	Score(a, DefaultWeights())
	Score(b, DefaultWeights())
	assert.Equal(t, a, b)
}

func TestScore_BudgetWeightIsOptIn(t *testing.T) {
	c := baseCandidate()
	c.BudgetMatch = 0
	withDefault := []Candidate{c}
	Score(withDefault, DefaultWeights())

	w, err := DefaultWeights().Merge(map[string]float64{WeightBudgetMatch: 0.2})
	require.NoError(t, err)
	c.BudgetMatch = 1
	weighted := []Candidate{c}
	Score(weighted, w)

	assert.InDelta(t, 0.74, withDefault[0].FinalScore, 1e-9)
	assert.InDelta(t, 0.94, weighted[0].FinalScore, 1e-9)
}

func TestRound4(t *testing.T) {
	cands := []Candidate{{TextSimilarity: 0.123456}}
	Score(cands, Weights{WeightTextSimilarity: 1})
	assert.Equal(t, 0.1235, cands[0].FinalScore)
	assert.Equal(t, 0.1235, cands[0].Breakdown.TextSimilarity)
}

func TestRerank_StableOnTies(t *testing.T) {
	// Given: retrieval order A, B, C, D with ties
	cands := []Candidate{
		{ProductID: "A", FinalScore: 0.5},
		{ProductID: "B", FinalScore: 0.7},
		{ProductID: "C", FinalScore: 0.5},
		{ProductID: "D", FinalScore: 0.7},
	}

	// When: reranking
	out := Rerank(cands, 10)

	// Then: ties keep retrieval order
	got := make([]string, len(out))
	for i, c := range out {
		got[i] = c.ProductID
	}
	assert.Equal(t, []string{"B", "D", "A", "C"}, got)

	// And: the input is untouched
	assert.Equal(t, "A", cands[0].ProductID)
}

func TestRerank_IdempotentAndTruncates(t *testing.T) {
	cands := []Candidate{
		{ProductID: "A", FinalScore: 0.3},
		{ProductID: "B", FinalScore: 0.9},
		{ProductID: "C", FinalScore: 0.9},
		{ProductID: "D", FinalScore: 0.1},
	}

	once := Rerank(cands, 3)
	twice := Rerank(once, 3)

	require.Len(t, once, 3)
	assert.Equal(t, once, twice)
	assert.Equal(t, "B", once[0].ProductID)
	assert.Equal(t, "C", once[1].ProductID)
}

func TestWeights_Merge(t *testing.T) {
	w, err := DefaultWeights().Merge(map[string]float64{WeightPriceScore: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, w[WeightPriceScore])
	assert.Equal(t, 0.4, w[WeightTextSimilarity])

	_, err = DefaultWeights().Merge(map[string]float64{"freshness": 0.1})
	assert.ErrorIs(t, err, shoperrors.ErrInvalidInput)

	_, err = DefaultWeights().Merge(map[string]float64{WeightRating: -0.1})
	assert.ErrorIs(t, err, shoperrors.ErrInvalidInput)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err = DefaultWeights().Merge(map[string]float64{WeightTextSimilarity: v})
		assert.ErrorIs(t, err, shoperrors.ErrInvalidInput, "weight %g", v)
	}

	// The defaults are not mutated.
	assert.Equal(t, 0.2, DefaultWeights()[WeightPriceScore])
}

func TestApplyFilters(t *testing.T) {
	cands := []Candidate{
		{ProductID: "A", Product: catalog.Product{Category: "Electronics"}},
		{ProductID: "B", Product: catalog.Product{Category: "Clothing"}},
		{ProductID: "C", Product: catalog.Product{Category: "Electronics"}},
	}

	out := ApplyFilters(cands, CategoryFilter("Electronics"))

	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].ProductID)
	assert.Equal(t, "C", out[1].ProductID)
	assert.Len(t, ApplyFilters(cands), 3)
}
