// Package search implements the ranking pipeline: candidate retrieval, feature
// enrichment, weighted scoring and stable re-ranking, plus the Engine that
// wires them together for one request.
package search

import (
	"fmt"
	"math"
	"slices"

	"github.com/shoprank/shoprank/internal/catalog"
	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/explain"
)

// Weight keys.
const (
	WeightTextSimilarity = "text_similarity"
	WeightPriceScore     = "price_score"
	WeightPopularity     = "popularity_score"
	WeightRating         = "rating_score"
	WeightReviewTrust    = "review_trust"
	WeightInStock        = "in_stock_bonus"
	WeightBudgetMatch    = "budget_match"
)

// CategoryMatchBonus is added outside the weighted sum for exact category matches.
const CategoryMatchBonus = 0.10

// NeutralBudgetMatch is the budget match when the caller gives no budget.
const NeutralBudgetMatch = 0.5

// Weights maps feature names to non-negative multipliers. They need not sum to 1.
type Weights map[string]float64

// DefaultWeights returns a fresh copy of the default weights.
// budget_match defaults to 0 so the budget signal is opt-in.
func DefaultWeights() Weights {
	return Weights{
		WeightTextSimilarity: 0.40,
		WeightPriceScore:     0.20,
		WeightPopularity:     0.20,
		WeightRating:         0.10,
		WeightReviewTrust:    0.05,
		WeightInStock:        0.05,
		WeightBudgetMatch:    0,
	}
}

// WeightKeys lists the accepted weight names in scoring order.
func WeightKeys() []string {
	return []string{
		WeightTextSimilarity, WeightPriceScore, WeightPopularity,
		WeightRating, WeightReviewTrust, WeightInStock, WeightBudgetMatch,
	}
}

// Merge overlays overrides on w and validates the result. Unknown keys and
// negative values are rejected with InvalidInput.
func (w Weights) Merge(overrides map[string]float64) (Weights, error) {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	for k, v := range overrides {
		if !slices.Contains(WeightKeys(), k) {
			return nil, shoperrors.ValidationError(fmt.Sprintf("unknown weight %q", k), nil).
				WithSuggestion(fmt.Sprintf("Valid weights: %v", WeightKeys()))
		}
		if !isFinite(v) || v < 0 {
			return nil, shoperrors.ValidationError(fmt.Sprintf("weight %q must be a finite non-negative number, got %g", k, v), nil)
		}
		out[k] = v
	}
	return out, nil
}

// Candidate is one product moving through the pipeline of a single request.
type Candidate struct {
	ProductID string
	Index     int
	Product   catalog.Product

	// Similarity is the raw retrieval score.
	Similarity float64

	TextSimilarity  float64
	PriceScore      float64
	PopularityScore float64
	RatingScore     float64
	ReviewTrust     float64
	InStockBonus    float64
	CategoryMatch   float64
	BudgetMatch     float64

	FinalScore float64
	Breakdown  explain.ScoreBreakdown
}

// Request is one search call.
type Request struct {
	Query string

	// TopK is the number of results to return. Zero selects the configured default.
	TopK int

	// PoolSize is the number of nearest neighbours to score. Zero selects the default.
	PoolSize int

	// Budget is the caller's maximum price. Nil means no budget.
	Budget *float64

	// Category filters candidates and overrides the inferred category intent.
	Category string

	// Weights override the defaults key by key.
	Weights map[string]float64

	// Explain attaches an explanation to each result.
	Explain bool
}

// Result is one ranked product.
type Result struct {
	Rank int `json:"rank"`
	catalog.Product

	FinalScore     float64                `json:"final_score"`
	ScoreBreakdown explain.ScoreBreakdown `json:"score_breakdown"`
	Explanation    *explain.Explanation   `json:"explanation,omitempty"`
}

// Response is the search envelope.
type Response struct {
	Query        string   `json:"query"`
	TotalResults int      `json:"total_results"`
	LatencyMs    float64  `json:"latency_ms"`
	Results      []Result `json:"results"`
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
