package explain

import "github.com/shoprank/shoprank/internal/catalog"

// SimilarReason explains why rec is shown next to source.
func SimilarReason(source, rec catalog.Product) string {
	switch {
	case source.Category == rec.Category && source.Subcategory == rec.Subcategory:
		return "Similar " + orDefault(rec.Subcategory, "product") + " you might like"
	case source.Category == rec.Category:
		return "Also in " + orDefault(rec.Category, "this category")
	default:
		return "Similar product based on your interest"
	}
}

// ComplementaryReason explains a complementary pick.
func ComplementaryReason(source catalog.Product) string {
	return "Pairs well with " + source.Subcategory
}
