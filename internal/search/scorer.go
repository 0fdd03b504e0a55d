package search

import (
	"github.com/shoprank/shoprank/internal/catalog"
	"github.com/shoprank/shoprank/internal/explain"
)

// Score computes FinalScore and Breakdown for every candidate in place.
//
// final = sum(weight * feature) with price_score clamped to at most 1,
// plus CategoryMatchBonus when category_match > 0, rounded to 4 places.
func Score(cands []Candidate, w Weights) {
	for i := range cands {
		c := &cands[i]
		price := min(1, c.PriceScore)

		score := w[WeightTextSimilarity]*c.TextSimilarity +
			w[WeightPriceScore]*price +
			w[WeightPopularity]*c.PopularityScore +
			w[WeightRating]*c.RatingScore +
			w[WeightReviewTrust]*c.ReviewTrust +
			w[WeightInStock]*c.InStockBonus +
			w[WeightBudgetMatch]*c.BudgetMatch

		if c.CategoryMatch > 0 {
			score += CategoryMatchBonus
		}

		c.FinalScore = catalog.Round4(score)
		c.Breakdown = explain.ScoreBreakdown{
			TextSimilarity:  catalog.Round4(c.TextSimilarity),
			PriceScore:      catalog.Round4(price),
			PopularityScore: catalog.Round4(c.PopularityScore),
			RatingScore:     catalog.Round4(c.RatingScore),
			CategoryMatch:   c.CategoryMatch,
		}
	}
}
