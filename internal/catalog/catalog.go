package catalog

import (
	"fmt"
	"log/slog"
	"sort"

	shoperrors "github.com/shoprank/shoprank/internal/errors"
)

// Catalog is the in-memory, read-only view of the product catalog.
// It is safe for concurrent reads once constructed.
type Catalog struct {
	products   []Product // index order
	byID       map[string]int
	features   map[string]FeatureRecord
	mapping    Mapping
	embeddings [][]float32 // by vector index

	categories    []string
	subcategories []string
	dims          int
}

// New validates the artifacts against each other and builds a Catalog.
// Any gap (a product without features, a mapping hole, an embedding count that
// does not match) is a LoadFailure: the catalog refuses to exist with partial data.
// embeddings may be nil when the caller never needs product vectors.
func New(products []Product, features map[string]FeatureRecord, mapping Mapping, embeddings [][]float32) (*Catalog, error) {
	if len(products) == 0 {
		return nil, shoperrors.LoadFailure("catalog has no products", nil)
	}

	c := &Catalog{
		products: make([]Product, len(products)),
		byID:     make(map[string]int, len(products)),
		features: features,
		mapping:  mapping,
	}

	if len(mapping.IdxToID) != len(products) || len(mapping.IDToIdx) != len(products) {
		return nil, inconsistent(fmt.Sprintf("id mapping has %d/%d entries for %d products",
			len(mapping.IDToIdx), len(mapping.IdxToID), len(products)))
	}

	for _, p := range products {
		if p.ID == "" {
			return nil, inconsistent("product with empty id")
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, inconsistent(fmt.Sprintf("duplicate product id %s", p.ID))
		}
		if _, ok := features[p.ID]; !ok {
			return nil, inconsistent(fmt.Sprintf("no feature record for product %s", p.ID))
		}
		idx, ok := mapping.IDToIdx[p.ID]
		if !ok {
			return nil, inconsistent(fmt.Sprintf("no index mapping for product %s", p.ID))
		}
		if idx < 0 || idx >= len(products) {
			return nil, inconsistent(fmt.Sprintf("index %d for product %s out of range", idx, p.ID))
		}
		if back, ok := mapping.IdxToID[idx]; !ok || back != p.ID {
			return nil, inconsistent(fmt.Sprintf("index %d does not map back to product %s", idx, p.ID))
		}
		if c.products[idx].ID != "" {
			return nil, inconsistent(fmt.Sprintf("index %d assigned twice", idx))
		}
		c.products[idx] = p
		c.byID[p.ID] = idx
	}

	if embeddings != nil {
		if len(embeddings) != len(products) {
			return nil, inconsistent(fmt.Sprintf("%d embeddings for %d products", len(embeddings), len(products)))
		}
		c.dims = len(embeddings[0])
		for i, v := range embeddings {
			if len(v) != c.dims || c.dims == 0 {
				return nil, inconsistent(fmt.Sprintf("embedding %d has dimension %d, want %d", i, len(v), c.dims))
			}
		}
		c.embeddings = embeddings
	}

	c.categories, c.subcategories = distinctCategories(c.products)

	slog.Debug("catalog_ready",
		slog.Int("products", len(c.products)),
		slog.Int("categories", len(c.categories)),
		slog.Int("dims", c.dims))

	return c, nil
}

func inconsistent(msg string) error {
	return shoperrors.New(shoperrors.ErrCodeArtifactInconsistent, msg, nil).
		WithSuggestion("Run 'shoprank build' to regenerate the catalog artifacts")
}

func distinctCategories(products []Product) (cats, subs []string) {
	seenCat := make(map[string]bool)
	seenSub := make(map[string]bool)
	for _, p := range products {
		if !seenCat[p.Category] {
			seenCat[p.Category] = true
			cats = append(cats, p.Category)
		}
		if !seenSub[p.Subcategory] {
			seenSub[p.Subcategory] = true
			subs = append(subs, p.Subcategory)
		}
	}
	sort.Strings(cats)
	sort.Strings(subs)
	return cats, subs
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// Product looks up a product by id.
func (c *Catalog) Product(id string) (Product, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[idx], true
}

// Features returns the precomputed features for a product.
func (c *Catalog) Features(id string) (FeatureRecord, bool) {
	f, ok := c.features[id]
	return f, ok
}

// Index returns the vector index position of a product.
func (c *Catalog) Index(id string) (int, bool) {
	idx, ok := c.byID[id]
	return idx, ok
}

// IDAt returns the product id stored at a vector index position.
func (c *Catalog) IDAt(idx int) (string, bool) {
	id, ok := c.mapping.IdxToID[idx]
	return id, ok
}

// Embedding returns the stored vector for a product.
func (c *Catalog) Embedding(id string) ([]float32, bool) {
	idx, ok := c.byID[id]
	if !ok || c.embeddings == nil {
		return nil, false
	}
	return c.embeddings[idx], true
}

// Products returns the products in index order. The slice must not be modified.
func (c *Catalog) Products() []Product {
	return c.products
}

// Mapping returns the id <-> index mapping.
func (c *Catalog) Mapping() Mapping {
	return c.mapping
}

// Embeddings returns all vectors in index order, or nil if none were loaded.
func (c *Catalog) Embeddings() [][]float32 {
	return c.embeddings
}

// Dimensions returns the embedding dimension, 0 without embeddings.
func (c *Catalog) Dimensions() int {
	return c.dims
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	return c.categories
}

// Subcategories returns the distinct subcategories, sorted.
func (c *Catalog) Subcategories() []string {
	return c.subcategories
}

// Stats summarises the catalog.
func (c *Catalog) Stats() Stats {
	counts := make(map[string]int, len(c.categories))
	for _, p := range c.products {
		counts[p.Category]++
	}
	return Stats{
		TotalProducts:      len(c.products),
		EmbeddingDimension: c.dims,
		Categories:         len(c.categories),
		Subcategories:      len(c.subcategories),
		CategoryCounts:     counts,
	}
}

// Build derives features and an index-order mapping from products and builds a Catalog.
func Build(products []Product, embeddings [][]float32) (*Catalog, error) {
	return New(products, ComputeFeatures(products), NewMapping(products), embeddings)
}
