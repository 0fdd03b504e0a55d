package mcp

import (
	"github.com/shoprank/shoprank/internal/explain"
	"github.com/shoprank/shoprank/internal/recommend"
	"github.com/shoprank/shoprank/internal/search"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query    string             `json:"query" jsonschema:"natural language shopping query, e.g. cheap wireless headphones"`
	TopK     int                `json:"top_k,omitempty" jsonschema:"number of results, default 20, max 100"`
	Budget   *float64           `json:"budget,omitempty" jsonschema:"maximum price the shopper wants to pay"`
	Category string             `json:"category,omitempty" jsonschema:"restrict results to one category, e.g. Electronics"`
	Weights  map[string]float64 `json:"weights,omitempty" jsonschema:"per-feature weight overrides keyed by feature name"`
	Explain  *bool              `json:"explain,omitempty" jsonschema:"attach explanations to each result, default true"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Query        string               `json:"query"`
	TotalResults int                  `json:"total_results"`
	LatencyMs    float64              `json:"latency_ms"`
	Results      []SearchResultOutput `json:"results" jsonschema:"ranked products, best first"`
}

// SearchResultOutput is one ranked product with its score components.
type SearchResultOutput struct {
	Rank        int                    `json:"rank"`
	ProductID   string                 `json:"product_id"`
	Title       string                 `json:"title"`
	Category    string                 `json:"category"`
	Subcategory string                 `json:"subcategory"`
	Brand       string                 `json:"brand"`
	Price       float64                `json:"price"`
	Rating      float64                `json:"rating"`
	InStock     bool                   `json:"in_stock"`
	FinalScore  float64                `json:"final_score"`
	Breakdown   explain.ScoreBreakdown `json:"score_breakdown"`
	Explanation string                 `json:"explanation,omitempty" jsonschema:"one-line reason this product ranked here"`
	Highlights  []string               `json:"highlights,omitempty"`
	Factors     map[string]string      `json:"detailed_factors,omitempty" jsonschema:"per-signal detail behind the explanation"`
	AIGenerated bool                   `json:"ai_generated" jsonschema:"true when the explanation came from the LLM, false for the template"`
}

// ProductInput identifies a catalog product.
type ProductInput struct {
	ProductID string `json:"product_id" jsonschema:"catalog product id, e.g. P0001"`
}

// RecommendInput defines the input schema for the similar and complementary tools.
type RecommendInput struct {
	ProductID string `json:"product_id" jsonschema:"catalog product id to recommend from"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"number of recommendations"`
}

// SimilarOutput defines the output schema for the similar tool.
type SimilarOutput struct {
	ProductID string                  `json:"product_id"`
	Items     []recommend.SimilarItem `json:"items"`
}

// ComplementaryOutput defines the output schema for the complementary tool.
type ComplementaryOutput struct {
	ProductID string                        `json:"product_id"`
	Items     []recommend.ComplementaryItem `json:"items"`
}

// ProductOutput defines the output schema for the product tool.
type ProductOutput struct {
	ProductID       string  `json:"product_id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	Subcategory     string  `json:"subcategory"`
	Brand           string  `json:"brand"`
	Price           float64 `json:"price"`
	Rating          float64 `json:"rating"`
	ReviewCount     int     `json:"review_count"`
	InStock         bool    `json:"in_stock"`
	ImageURL        string  `json:"image_url"`
	PopularityScore float64 `json:"popularity_score"`
}

// CatalogStatusInput defines the input schema for the catalog_status tool (no parameters).
type CatalogStatusInput struct{}

// CatalogStatusOutput describes the loaded catalog and the active embedder.
type CatalogStatusOutput struct {
	TotalProducts int           `json:"total_products"`
	IndexSize     int           `json:"index_size"`
	Categories    []string      `json:"categories"`
	Subcategories []string      `json:"subcategories"`
	Embeddings    EmbeddingInfo `json:"embeddings"`
}

// EmbeddingInfo reports the query embedder so clients can judge result quality.
type EmbeddingInfo struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Status     string `json:"status"`   // "ready" or "unavailable"
	Semantic   bool   `json:"semantic"` // false for the hash-based static embedder
}

func toSearchOutput(resp *search.Response) SearchOutput {
	out := SearchOutput{
		Query:        resp.Query,
		TotalResults: resp.TotalResults,
		LatencyMs:    resp.LatencyMs,
		Results:      make([]SearchResultOutput, len(resp.Results)),
	}
	for i, r := range resp.Results {
		o := SearchResultOutput{
			Rank:        r.Rank,
			ProductID:   r.ID,
			Title:       r.Title,
			Category:    r.Category,
			Subcategory: r.Subcategory,
			Brand:       r.Brand,
			Price:       r.Price,
			Rating:      r.Rating,
			InStock:     r.InStock,
			FinalScore:  r.FinalScore,
			Breakdown:   r.ScoreBreakdown,
		}
		if r.Explanation != nil {
			o.Explanation = r.Explanation.Short
			o.Highlights = r.Explanation.Highlights
			o.Factors = r.Explanation.DetailedFactors
			o.AIGenerated = r.Explanation.AIGenerated
		}
		out.Results[i] = o
	}
	return out
}
