package mcp

import (
	"fmt"
	"strings"
)

// FormatSearchResults formats ranked products as markdown.
func FormatSearchResults(out SearchOutput) string {
	if len(out.Results) == 0 {
		return fmt.Sprintf("No products found for \"%s\"", out.Query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Results for \"%s\"\n\n", out.Query)
	sb.WriteString(plural(len(out.Results), "product"))
	fmt.Fprintf(&sb, " ranked in %.1fms\n\n", out.LatencyMs)

	for _, r := range out.Results {
		fmt.Fprintf(&sb, "### %d. %s (`%s`)\n", r.Rank, r.Title, r.ProductID)
		fmt.Fprintf(&sb, "%s > %s | %s | $%.2f | %.1f★", r.Category, r.Subcategory, r.Brand, r.Price, r.Rating)
		if !r.InStock {
			sb.WriteString(" | out of stock")
		}
		fmt.Fprintf(&sb, "\n**Score:** %.4f (text %.2f, price %.2f, popularity %.2f, rating %.2f",
			r.FinalScore, r.Breakdown.TextSimilarity, r.Breakdown.PriceScore,
			r.Breakdown.PopularityScore, r.Breakdown.RatingScore)
		if r.Breakdown.CategoryMatch > 0 {
			sb.WriteString(", category match")
		}
		sb.WriteString(")\n")
		if r.Explanation != "" {
			fmt.Fprintf(&sb, "> %s\n", r.Explanation)
		}
		if len(r.Highlights) > 0 {
			fmt.Fprintf(&sb, "Highlights: %s\n", strings.Join(r.Highlights, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatSimilar formats embedding neighbours as a markdown list.
func FormatSimilar(out SimilarOutput) string {
	if len(out.Items) == 0 {
		return fmt.Sprintf("No similar products found for `%s`", out.ProductID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Similar to `%s`\n\n", out.ProductID)
	for i, it := range out.Items {
		fmt.Fprintf(&sb, "%d. **%s** (`%s`) $%.2f, %.1f★, similarity %.2f. %s\n",
			i+1, it.Title, it.ProductID, it.Price, it.Rating, it.SimilarityScore, it.Reason)
	}
	return sb.String()
}

// FormatComplementary formats cross-sell picks as a markdown list.
func FormatComplementary(out ComplementaryOutput) string {
	if len(out.Items) == 0 {
		return fmt.Sprintf("No complementary products found for `%s`", out.ProductID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Goes well with `%s`\n\n", out.ProductID)
	for i, it := range out.Items {
		fmt.Fprintf(&sb, "%d. **%s** (`%s`) %s, $%.2f, %.1f★\n",
			i+1, it.Title, it.ProductID, it.Subcategory, it.Price, it.Rating)
	}
	fmt.Fprintf(&sb, "\n_%s_\n", out.Items[0].Reason)
	return sb.String()
}

// FormatProduct formats a product detail card.
func FormatProduct(p ProductOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s (`%s`)\n\n", p.Title, p.ProductID)
	fmt.Fprintf(&sb, "- **Category:** %s > %s\n", p.Category, p.Subcategory)
	fmt.Fprintf(&sb, "- **Brand:** %s\n", p.Brand)
	fmt.Fprintf(&sb, "- **Price:** $%.2f\n", p.Price)
	fmt.Fprintf(&sb, "- **Rating:** %.1f from %d reviews\n", p.Rating, p.ReviewCount)
	if p.InStock {
		sb.WriteString("- **Availability:** in stock\n")
	} else {
		sb.WriteString("- **Availability:** out of stock\n")
	}
	if p.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", p.Description)
	}
	return sb.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// clampLimit applies a default when limit is unset and bounds it to [min, max].
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
