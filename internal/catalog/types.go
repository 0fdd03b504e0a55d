// Package catalog holds the read-only product catalog: product records, the
// precomputed per-product features, the id<->index mapping, and the product
// embeddings used for similar-item lookups.
package catalog

// Product is an immutable catalog entry.
type Product struct {
	ID          string  `json:"product_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Brand       string  `json:"brand"`
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	InStock     bool    `json:"in_stock"`
	ImageURL    string  `json:"image_url"`

	// PopularityScore is the raw demand signal from the catalog source.
	// The ranking pipeline reads the copy in FeatureRecord.
	PopularityScore float64 `json:"popularity_score"`
}

// FeatureRecord holds the offline-normalised ranking features for one product.
// Every score is in [0,1]; InStock is 0 or 1.
type FeatureRecord struct {
	PriceScore       float64 `json:"price_score"`
	PopularityScore  float64 `json:"popularity_score"`
	RatingScore      float64 `json:"rating_score"`
	ReviewTrustScore float64 `json:"review_trust_score"`
	InStock          float64 `json:"in_stock"`

	// Denormalised product fields kept for artifact readability.
	Category    string  `json:"category,omitempty"`
	Subcategory string  `json:"subcategory,omitempty"`
	Brand       string  `json:"brand,omitempty"`
	Price       float64 `json:"price,omitempty"`
}

// Mapping is the bidirectional product id <-> vector index table.
type Mapping struct {
	IDToIdx map[string]int `json:"id_to_idx"`
	IdxToID map[int]string `json:"idx_to_id"`
}

// NewMapping builds a mapping that assigns indices in product order.
func NewMapping(products []Product) Mapping {
	m := Mapping{
		IDToIdx: make(map[string]int, len(products)),
		IdxToID: make(map[int]string, len(products)),
	}
	for i, p := range products {
		m.IDToIdx[p.ID] = i
		m.IdxToID[i] = p.ID
	}
	return m
}

// Stats summarises the loaded catalog.
type Stats struct {
	TotalProducts      int            `json:"total_products"`
	EmbeddingDimension int            `json:"embedding_dimension"`
	Categories         int            `json:"categories"`
	Subcategories      int            `json:"subcategories"`
	CategoryCounts     map[string]int `json:"category_counts"`
}
