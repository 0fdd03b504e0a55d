package catalog

import (
	"math"
	"strings"
)

// ComputeFeatures normalises raw product signals into ranking features.
//
// Price is min-max normalised and inverted so cheaper products score higher.
// Rating is min-max normalised. Review trust is the min-max normalised
// log1p(review_count). Any signal with zero range maps to 0.5.
func ComputeFeatures(products []Product) map[string]FeatureRecord {
	features := make(map[string]FeatureRecord, len(products))
	if len(products) == 0 {
		return features
	}

	prices := make([]float64, len(products))
	ratings := make([]float64, len(products))
	logReviews := make([]float64, len(products))
	for i, p := range products {
		prices[i] = p.Price
		ratings[i] = p.Rating
		logReviews[i] = math.Log1p(float64(p.ReviewCount))
	}

	minPrice, priceRange := span(prices)
	minRating, ratingRange := span(ratings)
	minLog, logRange := span(logReviews)

	for i, p := range products {
		priceScore := 0.5
		if priceRange > 0 {
			priceScore = 1 - (p.Price-minPrice)/priceRange
		}
		ratingScore := 0.5
		if ratingRange > 0 {
			ratingScore = (p.Rating - minRating) / ratingRange
		}
		reviewScore := 0.5
		if logRange > 0 {
			reviewScore = (logReviews[i] - minLog) / logRange
		}
		inStock := 0.0
		if p.InStock {
			inStock = 1.0
		}

		features[p.ID] = FeatureRecord{
			PriceScore:       Round4(priceScore),
			PopularityScore:  p.PopularityScore,
			RatingScore:      Round4(ratingScore),
			ReviewTrustScore: Round4(reviewScore),
			InStock:          inStock,
			Category:         p.Category,
			Subcategory:      p.Subcategory,
			Brand:            p.Brand,
			Price:            p.Price,
		}
	}
	return features
}

// EmbeddingText is the text a product is embedded from.
func EmbeddingText(p Product) string {
	return strings.Join([]string{p.Title, p.Category, p.Subcategory, p.Brand, p.Description}, " ")
}

// Round4 rounds to 4 decimal places, half away from zero.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func span(values []float64) (lo, width float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi - lo
}
