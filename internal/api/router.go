package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shoprank/shoprank/internal/recommend"
	"github.com/shoprank/shoprank/internal/search"
	"github.com/shoprank/shoprank/internal/telemetry"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "shoprank"

// Dependencies are the components the routes serve. Metrics and QueryStats
// are optional; their endpoints are only mounted when set.
type Dependencies struct {
	Engine      *search.Engine
	Recommender *recommend.Recommender
	Metrics     *telemetry.Metrics
	QueryStats  *telemetry.QueryStats
}

// NewRouter builds the HTTP handler tree.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(observe(deps.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(allowAllOrigins)

	h := newHandler(deps)
	r.Get("/health", h.health)
	r.Get("/search", h.searchQuery)
	r.Post("/search", h.searchJSON)
	r.Get("/similar/{productID}", h.similar)
	r.Get("/complementary/{productID}", h.complementary)
	r.Get("/product/{productID}", h.product)
	r.Get("/categories", h.categories)
	r.Get("/stats", h.stats)
	if deps.QueryStats != nil {
		r.Get("/stats/queries", h.queryStats)
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	return r
}
