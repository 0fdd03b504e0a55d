// Package builder produces the offline catalog artifacts: a synthetic product
// catalog, normalised features, the id mapping, product embeddings and the
// persisted vector index.
package builder

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/shoprank/shoprank/internal/catalog"
)

// Generator defaults.
const (
	DefaultProductCount = 500
	DefaultSeed         = 42
)

type categorySpec struct {
	name          string
	subcategories []string
	brands        []string
	minPrice      float64
	maxPrice      float64
	keywords      []string
	titles        []string
	weight        float64 // popularity multiplier
}

var categorySpecs = []categorySpec{
	{
		name:          "Electronics",
		subcategories: []string{"Headphones", "Smartphones", "Laptops", "Tablets", "Cameras", "Smartwatches", "Speakers", "Gaming"},
		brands:        []string{"Sony", "Samsung", "Apple", "Bose", "JBL", "LG", "Anker", "Logitech"},
		minPrice:      29.99, maxPrice: 1999.99,
		keywords: []string{"wireless", "bluetooth", "HD", "pro", "ultra", "premium", "smart", "portable"},
		titles: []string{
			"{brand} {keyword} {subcategory}",
			"{keyword} {subcategory} with {feature}",
			"{brand} {subcategory} - {keyword} Edition",
			"Premium {keyword} {subcategory} by {brand}",
		},
		weight: 1.2,
	},
	{
		name:          "Clothing",
		subcategories: []string{"T-Shirts", "Jeans", "Dresses", "Jackets", "Shoes", "Activewear", "Accessories"},
		brands:        []string{"Nike", "Adidas", "Levi's", "Zara", "H&M", "Under Armour", "Puma", "Gap"},
		minPrice:      14.99, maxPrice: 299.99,
		keywords: []string{"cotton", "slim fit", "casual", "athletic", "comfortable", "stylish", "breathable"},
		titles: []string{
			"{brand} {keyword} {subcategory}",
			"Men's/Women's {keyword} {subcategory}",
			"{brand} {subcategory} - {keyword} Style",
			"{keyword} {subcategory} for Everyday Wear",
		},
		weight: 1.1,
	},
	{
		name:          "Home & Kitchen",
		subcategories: []string{"Cookware", "Appliances", "Bedding", "Storage", "Decor", "Cleaning", "Furniture"},
		brands:        []string{"KitchenAid", "Instant Pot", "Dyson", "Ninja", "OXO", "Cuisinart", "Rubbermaid"},
		minPrice:      9.99, maxPrice: 599.99,
		keywords: []string{"stainless steel", "non-stick", "compact", "efficient", "modern", "durable"},
		titles: []string{
			"{brand} {keyword} {subcategory}",
			"{subcategory} Set - {keyword} Design",
			"{brand} {subcategory} with {feature}",
			"Professional {keyword} {subcategory}",
		},
		weight: 1.0,
	},
	{
		name:          "Sports & Outdoors",
		subcategories: []string{"Fitness", "Camping", "Cycling", "Running", "Yoga", "Team Sports", "Swimming"},
		brands:        []string{"Nike", "Adidas", "The North Face", "Columbia", "Fitbit", "Garmin", "Yeti"},
		minPrice:      12.99, maxPrice: 499.99,
		keywords: []string{"lightweight", "waterproof", "durable", "professional", "performance", "outdoor"},
		titles: []string{
			"{brand} {keyword} {subcategory} Gear",
			"{subcategory} Equipment - {keyword}",
			"{brand} Pro {subcategory}",
			"{keyword} {subcategory} for Athletes",
		},
		weight: 0.95,
	},
	{
		name:          "Beauty & Personal Care",
		subcategories: []string{"Skincare", "Haircare", "Makeup", "Fragrances", "Bath & Body", "Men's Grooming"},
		brands:        []string{"L'Oreal", "Nivea", "Dove", "Neutrogena", "Olay", "Maybelline", "Gillette"},
		minPrice:      4.99, maxPrice: 149.99,
		keywords: []string{"organic", "natural", "hydrating", "anti-aging", "gentle", "long-lasting"},
		titles: []string{
			"{brand} {keyword} {subcategory}",
			"{subcategory} - {keyword} Formula",
			"{brand} {keyword} {subcategory} Collection",
			"Daily {keyword} {subcategory}",
		},
		weight: 1.0,
	},
	{
		name:          "Books & Media",
		subcategories: []string{"Fiction", "Non-Fiction", "Self-Help", "Textbooks", "Comics", "Audiobooks"},
		brands:        []string{"Penguin", "HarperCollins", "Random House", "Simon & Schuster", "Scholastic"},
		minPrice:      7.99, maxPrice: 79.99,
		keywords: []string{"bestseller", "award-winning", "classic", "new release", "illustrated"},
		titles: []string{
			"{keyword} {subcategory}: A Journey",
			"The Complete Guide to {subcategory}",
			"{keyword} Stories: {subcategory} Edition",
			"Mastering {subcategory}",
		},
		weight: 0.85,
	},
	{
		name:          "Toys & Games",
		subcategories: []string{"Action Figures", "Board Games", "Puzzles", "Building Sets", "Dolls", "Outdoor Toys"},
		brands:        []string{"LEGO", "Hasbro", "Mattel", "Fisher-Price", "Nintendo", "Nerf", "Hot Wheels"},
		minPrice:      9.99, maxPrice: 299.99,
		keywords: []string{"educational", "interactive", "collectible", "classic", "creative", "fun"},
		titles: []string{
			"{brand} {keyword} {subcategory}",
			"{subcategory} Set - {keyword} Edition",
			"{brand} {subcategory} Collection",
			"{keyword} {subcategory} for All Ages",
		},
		weight: 0.9,
	},
}

var productFeatures = []string{
	"Fast Charging", "Voice Control", "LED Display", "Touch Screen",
	"Noise Cancellation", "Water Resistant", "Eco-Friendly", "Compact Design",
	"Long Battery Life", "Quick Setup", "Smart Features", "Premium Materials",
}

var descriptionTemplates = []string{
	"Experience the best in {sub} with this {keyword} product from {brand}. Designed for everyday use with premium quality materials.",
	"This {keyword} {sub} from {brand} delivers exceptional performance. Perfect for those who value quality and reliability.",
	"Introducing the {brand} {sub} - featuring {keyword} technology. Ideal for home and professional use.",
	"Upgrade your {category} collection with this {keyword} {sub}. {brand} brings you innovation and style combined.",
	"The perfect {sub} for your needs. {brand}'s {keyword} design ensures top performance and durability.",
}

// GenerateOptions configures the synthetic catalog.
type GenerateOptions struct {
	Count int
	Seed  uint64
}

// Generate returns a deterministic synthetic catalog. The same options always
// yield the same products, with ids P0001, P0002, ...
func Generate(opts GenerateOptions) []catalog.Product {
	if opts.Count <= 0 {
		opts.Count = DefaultProductCount
	}
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	title := cases.Title(language.English)

	products := make([]catalog.Product, 0, opts.Count)
	for i := 1; i <= opts.Count; i++ {
		spec := categorySpecs[rng.IntN(len(categorySpecs))]
		sub := pick(rng, spec.subcategories)
		brand := pick(rng, spec.brands)
		keyword := pick(rng, spec.keywords)
		feature := pick(rng, productFeatures)

		name := strings.NewReplacer(
			"{brand}", brand,
			"{keyword}", title.String(keyword),
			"{subcategory}", sub,
			"{feature}", feature,
		).Replace(pick(rng, spec.titles))

		price := round(spec.minPrice+rng.Float64()*(spec.maxPrice-spec.minPrice), 2)
		rating := round(3.0+rng.Float64()*2.0, 1)
		id := fmt.Sprintf("P%04d", i)

		products = append(products, catalog.Product{
			ID:              id,
			Title:           name,
			Description:     describe(rng, spec.name, sub, brand, spec.keywords),
			Category:        spec.name,
			Subcategory:     sub,
			Brand:           brand,
			Price:           price,
			Rating:          rating,
			PopularityScore: popularity(rng, rating, price, spec),
			InStock:         rng.Float64() > 0.1,
			ReviewCount:     5 + rng.IntN(1996),
			ImageURL:        fmt.Sprintf("https://picsum.photos/seed/%s/400/400", id),
		})
	}
	return products
}

func describe(rng *rand.Rand, category, sub, brand string, keywords []string) string {
	return strings.NewReplacer(
		"{sub}", strings.ToLower(sub),
		"{keyword}", pick(rng, keywords),
		"{brand}", brand,
		"{category}", strings.ToLower(category),
	).Replace(pick(rng, descriptionTemplates))
}

// popularity favours high ratings and mid-range prices, scaled by category
// demand, and lands in [0.1, 0.99].
func popularity(rng *rand.Rand, rating, price float64, spec categorySpec) float64 {
	base := (rating - 3.0) / 2.0
	mid := (spec.minPrice + spec.maxPrice) / 2
	priceFactor := 1 - math.Abs(price-mid)/(spec.maxPrice-spec.minPrice)
	raw := (0.4*base + 0.3*priceFactor + 0.3*rng.Float64()) * spec.weight
	return round(max(0.1, min(0.99, (raw+1)/2)), 3)
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// CatalogSummary describes a product set for CLI reporting.
type CatalogSummary struct {
	Products       int
	CategoryCounts map[string]int
	MinPrice       float64
	MaxPrice       float64
	AvgPrice       float64
	MinRating      float64
	MaxRating      float64
	AvgRating      float64
}

// Summarize computes distribution statistics over products.
func Summarize(products []catalog.Product) CatalogSummary {
	s := CatalogSummary{Products: len(products), CategoryCounts: map[string]int{}}
	if len(products) == 0 {
		return s
	}
	s.MinPrice, s.MaxPrice = math.Inf(1), math.Inf(-1)
	s.MinRating, s.MaxRating = math.Inf(1), math.Inf(-1)
	var priceSum, ratingSum float64
	for _, p := range products {
		s.CategoryCounts[p.Category]++
		s.MinPrice = min(s.MinPrice, p.Price)
		s.MaxPrice = max(s.MaxPrice, p.Price)
		s.MinRating = min(s.MinRating, p.Rating)
		s.MaxRating = max(s.MaxRating, p.Rating)
		priceSum += p.Price
		ratingSum += p.Rating
	}
	n := float64(len(products))
	s.AvgPrice = priceSum / n
	s.AvgRating = ratingSum / n
	return s
}
