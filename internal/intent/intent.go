// Package intent derives coarse shopping intent from free-text queries.
//
// Both lookups are case-insensitive substring matches against static, ordered
// keyword tables. The first matching entry wins, so table order is the tie-break.
package intent

import "strings"

// PriceIntent is the price tier a query asks for.
type PriceIntent string

const (
	PriceNone    PriceIntent = ""
	PriceBudget  PriceIntent = "budget"
	PricePremium PriceIntent = "premium"
)

// Intent is everything inferred from one query.
type Intent struct {
	Category string // empty when no category keyword matched
	Price    PriceIntent
}

type keywordRule[T any] struct {
	label    T
	keywords []string
}

func (r keywordRule[T]) matches(lowered string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

var categoryRules = []keywordRule[string]{
	{"Electronics", []string{"phone", "laptop", "headphone", "speaker", "camera", "tablet", "watch", "gaming", "bluetooth", "wireless"}},
	{"Clothing", []string{"shirt", "pants", "dress", "jacket", "shoes", "clothing", "wear", "fashion", "jeans"}},
	{"Home & Kitchen", []string{"kitchen", "cook", "appliance", "home", "furniture", "bedding", "storage"}},
	{"Sports & Outdoors", []string{"sport", "fitness", "gym", "outdoor", "running", "yoga", "cycling", "camping"}},
	{"Beauty & Personal Care", []string{"beauty", "skincare", "makeup", "hair", "fragrance", "grooming"}},
	{"Books & Media", []string{"book", "reading", "novel", "guide", "audiobook"}},
	{"Toys & Games", []string{"toy", "game", "puzzle", "lego", "kids", "children"}},
}

// Budget is checked before premium: "best budget laptop" is a budget query.
var priceRules = []keywordRule[PriceIntent]{
	{PriceBudget, []string{"cheap", "budget", "affordable", "low price", "deal"}},
	{PricePremium, []string{"premium", "luxury", "high-end", "best", "top"}},
}

func firstMatch[T any](rules []keywordRule[T], query string) (T, bool) {
	lowered := strings.ToLower(query)
	for _, r := range rules {
		if r.matches(lowered) {
			return r.label, true
		}
	}
	var zero T
	return zero, false
}

// InferCategory returns the first category whose keywords occur in query.
func InferCategory(query string) (string, bool) {
	return firstMatch(categoryRules, query)
}

// InferPriceIntent returns the price tier requested by query, PriceNone if any.
func InferPriceIntent(query string) PriceIntent {
	p, _ := firstMatch(priceRules, query)
	return p
}

// Infer runs both lookups.
func Infer(query string) Intent {
	cat, _ := InferCategory(query)
	return Intent{Category: cat, Price: InferPriceIntent(query)}
}

// Categories lists the categories the table can infer, in table order.
func Categories() []string {
	out := make([]string, len(categoryRules))
	for i, r := range categoryRules {
		out[i] = r.label
	}
	return out
}
