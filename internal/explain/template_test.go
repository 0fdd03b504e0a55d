package explain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shoprank/shoprank/internal/catalog"
)

func laptop() catalog.Product {
	return catalog.Product{
		ID:          "P0001",
		Title:       "Dell Pro Laptop",
		Category:    "Electronics",
		Subcategory: "Laptops",
		Brand:       "Dell",
		Price:       899.99,
		Rating:      4.7,
		ReviewCount: 312,
		InStock:     true,
	}
}

func TestTemplateExplainer_AllRulesFire(t *testing.T) {
	// Given: a top result strong on every signal
	in := Input{
		Query:   "gaming laptop",
		Rank:    1,
		Product: laptop(),
		Breakdown: ScoreBreakdown{
			TextSimilarity:  0.82,
			PriceScore:      0.75,
			PopularityScore: 0.91,
			RatingScore:     0.85,
			CategoryMatch:   1,
		},
	}

	// When: explaining it
	exp := TemplateExplainer{}.Explain(context.Background(), in)

	// Then: the first three clauses make the sentence
	assert.Equal(t, "Ranked #1 because it closely matches your search 'gaming laptop', highly rated (4.7★), competitively priced.", exp.Short)

	// And: highlights stop at four in rule order
	assert.Equal(t, []string{BadgeBestMatch, BadgeTopRated, BadgeBestValue, BadgePopularChoice}, exp.Highlights)
	assert.False(t, exp.AIGenerated)

	// And: detailed factors are formatted
	assert.Equal(t, "82% match", exp.DetailedFactors["query_match"])
	assert.Equal(t, "75% score", exp.DetailedFactors["price_competitiveness"])
	assert.Equal(t, "91% popular", exp.DetailedFactors["popularity"])
	assert.Equal(t, "4.7★ (312 reviews)", exp.DetailedFactors["rating"])
}

func TestTemplateExplainer_LowerTiers(t *testing.T) {
	in := Input{
		Query:   "laptop",
		Rank:    2,
		Product: laptop(),
		Breakdown: ScoreBreakdown{
			TextSimilarity: 0.6,
			RatingScore:    0.7,
		},
	}

	exp := TemplateExplainer{}.Explain(context.Background(), in)

	assert.Equal(t, "Top result because it matches your search query, well rated by customers.", exp.Short)
	assert.Equal(t, []string{BadgeInStock}, exp.Highlights)
}

func TestTemplateExplainer_NoFactors(t *testing.T) {
	p := laptop()
	p.InStock = false

	exp := TemplateExplainer{}.Explain(context.Background(), Input{Query: "x", Rank: 12, Product: p})

	assert.Equal(t, "Ranked here because it is a good match for your search.", exp.Short)
	assert.Empty(t, exp.Highlights)
}

func TestTemplateExplainer_CategoryMatchClause(t *testing.T) {
	exp := TemplateExplainer{}.Explain(context.Background(), Input{
		Rank:      5,
		Product:   laptop(),
		Breakdown: ScoreBreakdown{CategoryMatch: 1},
	})

	assert.Equal(t, "Highly ranked because it exact category match (Laptops).", exp.Short)
	assert.Equal(t, []string{BadgeCategoryMatch, BadgeInStock}, exp.Highlights)
}

func TestRankPrefix(t *testing.T) {
	tests := []struct {
		rank int
		want string
	}{
		{1, "Ranked #1 because it"},
		{2, "Top result because it"},
		{3, "Top result because it"},
		{4, "Highly ranked because it"},
		{10, "Highly ranked because it"},
		{11, "Ranked here because it"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rankPrefix(tt.rank), "rank %d", tt.rank)
	}
}

func TestDedupe_CapsAndKeepsOrder(t *testing.T) {
	got := dedupe([]string{"a", "b", "a", "c", "b", "d", "e"}, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestTemplateExplainer_HighlightsNeverExceedFour(t *testing.T) {
	for _, ts := range []float64{0, 0.55, 0.75, 0.95} {
		for _, cm := range []float64{0, 1} {
			exp := TemplateExplainer{}.Explain(context.Background(), Input{
				Rank:    1,
				Product: laptop(),
				Breakdown: ScoreBreakdown{
					TextSimilarity: ts, PriceScore: ts, PopularityScore: ts, RatingScore: ts, CategoryMatch: cm,
				},
			})
			assert.LessOrEqual(t, len(exp.Highlights), 4)
			assert.Len(t, dedupe(exp.Highlights, 10), len(exp.Highlights))
		}
	}
}

func TestSimilarReason(t *testing.T) {
	src := laptop()

	same := src
	same.ID = "P0002"
	assert.Equal(t, "Similar Laptops you might like", SimilarReason(src, same))

	sibling := src
	sibling.Subcategory = "Tablets"
	assert.Equal(t, "Also in Electronics", SimilarReason(src, sibling))

	other := catalog.Product{Category: "Books & Media", Subcategory: "Fiction"}
	assert.Equal(t, "Similar product based on your interest", SimilarReason(src, other))
}

func TestComplementaryReason(t *testing.T) {
	assert.Equal(t, "Pairs well with Laptops", ComplementaryReason(laptop()))
}
