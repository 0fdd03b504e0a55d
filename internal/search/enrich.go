package search

import (
	"fmt"

	"github.com/shoprank/shoprank/internal/catalog"
	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/intent"
)

// EnrichParams carries the per-request signals used by Enrich.
type EnrichParams struct {
	// Category is the resolved category intent, empty when none.
	Category string
	Price    intent.PriceIntent
	Budget   *float64
}

// Enrich copies each candidate's precomputed features and applies the intent
// and budget adjustments. The catalog guarantees a feature record per product.
func Enrich(cands []Candidate, cat *catalog.Catalog, p EnrichParams) ([]Candidate, error) {
	out := make([]Candidate, len(cands))
	for i, c := range cands {
		f, ok := cat.Features(c.ProductID)
		if !ok {
			return nil, errMissingFeatures(c.ProductID)
		}

		c.TextSimilarity = c.Similarity
		c.PriceScore = f.PriceScore
		c.PopularityScore = f.PopularityScore
		c.RatingScore = f.RatingScore
		c.ReviewTrust = f.ReviewTrustScore
		c.InStockBonus = f.InStock

		c.CategoryMatch = 0
		if p.Category != "" && c.Product.Category == p.Category {
			c.CategoryMatch = 1
		}

		c.PriceScore = AdjustPrice(c.PriceScore, p.Price)
		c.BudgetMatch = BudgetMatch(c.Product.Price, p.Budget)
		out[i] = c
	}
	return out, nil
}

// AdjustPrice applies the price intent. The budget boost may exceed 1; the
// scorer clamps it.
func AdjustPrice(score float64, pi intent.PriceIntent) float64 {
	switch pi {
	case intent.PriceBudget:
		return score * 1.5
	case intent.PricePremium:
		return 1 - score
	default:
		return score
	}
}

// BudgetMatch is 1 within budget and decays linearly to 0 at twice the budget.
// Without a budget it is neutral.
func BudgetMatch(price float64, budget *float64) float64 {
	if budget == nil || *budget <= 0 {
		return NeutralBudgetMatch
	}
	if price <= *budget {
		return 1
	}
	over := price / *budget
	return max(0, 1-(over-1))
}

func errMissingFeatures(id string) error {
	return shoperrors.InternalError(fmt.Sprintf("no feature record for %s", id), nil)
}
