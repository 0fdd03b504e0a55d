// Package recommend serves product-to-product recommendations: embedding
// neighbours ("similar") and subcategory affinity ("complementary").
// Both operations return an empty list for unknown product ids.
package recommend

import (
	"cmp"
	"context"
	"slices"

	"github.com/shoprank/shoprank/internal/catalog"
	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/explain"
	"github.com/shoprank/shoprank/internal/store"
	"github.com/shoprank/shoprank/internal/telemetry"
)

// Recommendation kinds.
const (
	KindSimilar       = "similar"
	KindComplementary = "complementary"
)

// affinity maps a subcategory to the subcategories that complement it.
var affinity = map[string][]string{
	"Laptops":     {"Headphones", "Speakers", "Gaming"},
	"Smartphones": {"Headphones", "Smartwatches", "Speakers"},
	"Headphones":  {"Smartphones", "Laptops", "Speakers"},
	"Cameras":     {"Tablets", "Laptops", "Gaming"},
	"T-Shirts":    {"Jeans", "Shoes", "Accessories"},
	"Jeans":       {"T-Shirts", "Shoes", "Jackets"},
	"Shoes":       {"T-Shirts", "Jeans", "Activewear"},
	"Cookware":    {"Appliances", "Storage", "Cleaning"},
	"Fitness":     {"Running", "Yoga", "Swimming"},
	"Skincare":    {"Haircare", "Bath & Body", "Makeup"},
}

// Complements returns the curated complements of a subcategory.
func Complements(subcategory string) []string {
	return slices.Clone(affinity[subcategory])
}

// SimilarItem is one embedding neighbour.
type SimilarItem struct {
	ProductID       string  `json:"product_id"`
	Title           string  `json:"title"`
	Category        string  `json:"category"`
	Subcategory     string  `json:"subcategory"`
	Price           float64 `json:"price"`
	Rating          float64 `json:"rating"`
	ImageURL        string  `json:"image_url"`
	SimilarityScore float64 `json:"similarity_score"`
	Reason          string  `json:"reason"`
}

// ComplementaryItem is one affinity pick.
type ComplementaryItem struct {
	ProductID   string  `json:"product_id"`
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating"`
	ImageURL    string  `json:"image_url"`
	Reason      string  `json:"reason"`
}

// Recommender holds no per-request state and is safe for concurrent use.
type Recommender struct {
	catalog *catalog.Catalog
	index   store.VectorIndex
	metrics *telemetry.Metrics
}

// Option configures a Recommender.
type Option func(*Recommender)

// WithMetrics counts requests per kind.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Recommender) {
		r.metrics = m
	}
}

// New creates a recommender.
func New(cat *catalog.Catalog, index store.VectorIndex, opts ...Option) *Recommender {
	r := &Recommender{catalog: cat, index: index}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recommender) count(kind string) {
	if r.metrics != nil {
		r.metrics.RecommendRequests.WithLabelValues(kind).Inc()
	}
}

// Similar returns up to topK nearest products by embedding, never including
// the source product.
func (r *Recommender) Similar(ctx context.Context, productID string, topK int) ([]SimilarItem, error) {
	r.count(KindSimilar)

	source, ok := r.catalog.Product(productID)
	vec, hasVec := r.catalog.Embedding(productID)
	if !ok || !hasVec || topK <= 0 {
		return []SimilarItem{}, nil
	}

	// One extra neighbour because the source is usually its own nearest.
	neighbors, err := r.index.Search(ctx, vec, topK+1)
	if err != nil {
		return nil, shoperrors.RetrievalUnavailable("vector index search failed", err)
	}

	out := make([]SimilarItem, 0, topK)
	for _, n := range neighbors {
		id, ok := r.catalog.IDAt(n.Index)
		if !ok || id == productID {
			continue
		}
		p, _ := r.catalog.Product(id)
		out = append(out, SimilarItem{
			ProductID:       p.ID,
			Title:           p.Title,
			Category:        p.Category,
			Subcategory:     p.Subcategory,
			Price:           p.Price,
			Rating:          p.Rating,
			ImageURL:        p.ImageURL,
			SimilarityScore: catalog.Round4(n.Similarity),
			Reason:          explain.SimilarReason(source, p),
		})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

// Complementary returns up to topK products from complementary subcategories
// or sibling subcategories of the same category, most popular first with
// rating as the tie-break.
func (r *Recommender) Complementary(productID string, topK int) []ComplementaryItem {
	r.count(KindComplementary)

	source, ok := r.catalog.Product(productID)
	if !ok || topK <= 0 {
		return []ComplementaryItem{}
	}

	complements := affinity[source.Subcategory]
	var cands []catalog.Product
	for _, p := range r.catalog.Products() {
		if p.ID == productID {
			continue
		}
		sibling := p.Category == source.Category && p.Subcategory != source.Subcategory
		if slices.Contains(complements, p.Subcategory) || sibling {
			cands = append(cands, p)
		}
	}

	slices.SortStableFunc(cands, func(a, b catalog.Product) int {
		if c := cmp.Compare(b.PopularityScore, a.PopularityScore); c != 0 {
			return c
		}
		return cmp.Compare(b.Rating, a.Rating)
	})
	if len(cands) > topK {
		cands = cands[:topK]
	}

	reason := explain.ComplementaryReason(source)
	out := make([]ComplementaryItem, len(cands))
	for i, p := range cands {
		out[i] = ComplementaryItem{
			ProductID:   p.ID,
			Title:       p.Title,
			Category:    p.Category,
			Subcategory: p.Subcategory,
			Price:       p.Price,
			Rating:      p.Rating,
			ImageURL:    p.ImageURL,
			Reason:      reason,
		}
	}
	return out
}
