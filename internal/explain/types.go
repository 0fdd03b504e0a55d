// Package explain turns score breakdowns into short natural-language
// justifications and highlight badges.
//
// Two strategies share one output shape: the deterministic template rules and
// an LLM-backed generator. FallbackExplainer composes them so an LLM failure
// always resolves to the template output.
package explain

import (
	"context"

	"github.com/shoprank/shoprank/internal/catalog"
)

// ScoreBreakdown holds the five displayed component scores of a ranked result,
// each rounded to 4 decimal places.
type ScoreBreakdown struct {
	TextSimilarity  float64 `json:"text_similarity"`
	PriceScore      float64 `json:"price_score"`
	PopularityScore float64 `json:"popularity_score"`
	RatingScore     float64 `json:"rating_score"`
	CategoryMatch   float64 `json:"category_match"`
}

// Input is everything needed to explain one ranked result.
type Input struct {
	Query     string
	Rank      int
	Product   catalog.Product
	Breakdown ScoreBreakdown
}

// Explanation is the output contract shared by every strategy.
type Explanation struct {
	Short           string            `json:"short"`
	Highlights      []string          `json:"highlights"`
	DetailedFactors map[string]string `json:"detailed_factors"`
	AIGenerated     bool              `json:"ai_generated"`
}

// Explainer produces an explanation. It never fails.
type Explainer interface {
	Explain(ctx context.Context, in Input) Explanation
}

// Generator is a strategy that may fail, such as a remote completion call.
type Generator interface {
	Generate(ctx context.Context, in Input) Result
}

// Result is either an explanation or the reason one could not be produced.
type Result struct {
	value Explanation
	err   error
}

// Ok wraps a successful explanation.
func Ok(e Explanation) Result {
	return Result{value: e}
}

// Err wraps a failure.
func Err(err error) Result {
	return Result{err: err}
}

// IsOk reports whether the result holds an explanation.
func (r Result) IsOk() bool {
	return r.err == nil
}

// Unwrap returns the explanation and the failure reason.
func (r Result) Unwrap() (Explanation, error) {
	return r.value, r.err
}
