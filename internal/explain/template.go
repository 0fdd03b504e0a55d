package explain

import (
	"context"
	"fmt"
	"strings"
)

// Badge labels.
const (
	BadgeBestMatch     = "Best Match"
	BadgeTopRated      = "Top Rated"
	BadgeBestValue     = "Best Value"
	BadgePopularChoice = "Popular Choice"
	BadgeCategoryMatch = "Category Match"
	BadgeInStock       = "In Stock"
)

const (
	maxFactors    = 3
	maxHighlights = 4
)

// tier is one threshold of a rule. clause may be nil for badge-only tiers.
type tier struct {
	applies func(Input) bool
	clause  func(Input) string
	badge   string
}

// rule is an ordered list of tiers; only the first tier that applies fires.
type rule struct {
	name  string
	tiers []tier
}

func text(s string) func(Input) string {
	return func(Input) string { return s }
}

// rules is evaluated top to bottom. Order fixes both clause and badge order.
var rules = []rule{
	{name: "query_match", tiers: []tier{
		{
			applies: func(in Input) bool { return in.Breakdown.TextSimilarity > 0.7 },
			clause:  func(in Input) string { return fmt.Sprintf("closely matches your search '%s'", in.Query) },
			badge:   BadgeBestMatch,
		},
		{
			applies: func(in Input) bool { return in.Breakdown.TextSimilarity > 0.5 },
			clause:  text("matches your search query"),
		},
	}},
	{name: "rating", tiers: []tier{
		{
			applies: func(in Input) bool { return in.Breakdown.RatingScore > 0.8 },
			clause:  func(in Input) string { return fmt.Sprintf("highly rated (%s★)", formatRating(in.Product.Rating)) },
			badge:   BadgeTopRated,
		},
		{
			applies: func(in Input) bool { return in.Breakdown.RatingScore > 0.6 },
			clause:  text("well rated by customers"),
		},
	}},
	{name: "price", tiers: []tier{
		{
			applies: func(in Input) bool { return in.Breakdown.PriceScore > 0.7 },
			clause:  text("competitively priced"),
			badge:   BadgeBestValue,
		},
	}},
	{name: "popularity", tiers: []tier{
		{
			applies: func(in Input) bool { return in.Breakdown.PopularityScore > 0.7 },
			clause:  func(in Input) string { return "popular in " + orDefault(in.Product.Category, "this category") },
			badge:   BadgePopularChoice,
		},
	}},
	{name: "category", tiers: []tier{
		{
			applies: func(in Input) bool { return in.Breakdown.CategoryMatch > 0 },
			clause:  func(in Input) string { return fmt.Sprintf("exact category match (%s)", in.Product.Subcategory) },
			badge:   BadgeCategoryMatch,
		},
	}},
	{name: "stock", tiers: []tier{
		{
			applies: func(in Input) bool { return in.Product.InStock },
			badge:   BadgeInStock,
		},
	}},
}

// evaluate runs the rule table and returns the fired clauses and badges.
func evaluate(in Input) (factors, badges []string) {
	for _, r := range rules {
		for _, t := range r.tiers {
			if !t.applies(in) {
				continue
			}
			if t.clause != nil {
				factors = append(factors, t.clause(in))
			}
			if t.badge != "" {
				badges = append(badges, t.badge)
			}
			break
		}
	}
	return factors, badges
}

// TemplateExplainer is the deterministic rule-based strategy.
type TemplateExplainer struct{}

var _ Explainer = TemplateExplainer{}

// Explain builds the explanation from the rule table.
func (TemplateExplainer) Explain(_ context.Context, in Input) Explanation {
	factors, badges := evaluate(in)
	return Explanation{
		Short:           shortText(in.Rank, factors),
		Highlights:      dedupe(badges, maxHighlights),
		DetailedFactors: detailedFactors(in),
	}
}

func rankPrefix(rank int) string {
	switch {
	case rank == 1:
		return "Ranked #1 because it"
	case rank <= 3:
		return "Top result because it"
	case rank <= 10:
		return "Highly ranked because it"
	default:
		return "Ranked here because it"
	}
}

func shortText(rank int, factors []string) string {
	prefix := rankPrefix(rank)
	if len(factors) == 0 {
		return prefix + " is a good match for your search."
	}
	if len(factors) > maxFactors {
		factors = factors[:maxFactors]
	}
	return fmt.Sprintf("%s %s.", prefix, strings.Join(factors, ", "))
}

func detailedFactors(in Input) map[string]string {
	b := in.Breakdown
	return map[string]string{
		"query_match":           fmt.Sprintf("%.0f%% match", b.TextSimilarity*100),
		"price_competitiveness": fmt.Sprintf("%.0f%% score", b.PriceScore*100),
		"popularity":            fmt.Sprintf("%.0f%% popular", b.PopularityScore*100),
		"rating":                fmt.Sprintf("%s★ (%d reviews)", formatRating(in.Product.Rating), in.Product.ReviewCount),
	}
}

// dedupe keeps first-seen order and caps the result at limit.
func dedupe(labels []string, limit int) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, min(len(labels), limit))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out
}

func formatRating(r float64) string {
	return fmt.Sprintf("%.1f", r)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
