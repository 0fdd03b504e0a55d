package api

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shoprank/shoprank/internal/catalog"
	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/recommend"
	"github.com/shoprank/shoprank/internal/search"
	"github.com/shoprank/shoprank/internal/telemetry"
)

// Per-endpoint result bounds.
const (
	similarDefault       = 10
	similarMax           = 50
	complementaryDefault = 5
	complementaryMax     = 20
	maxSearchBody        = 64 << 10
)

type handler struct {
	engine          *search.Engine
	recommender     *recommend.Recommender
	queryStatsStore *telemetry.QueryStats
}

func newHandler(deps Dependencies) *handler {
	return &handler{
		engine:          deps.Engine,
		recommender:     deps.Recommender,
		queryStatsStore: deps.QueryStats,
	}
}

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, HealthResponse{Status: "healthy", Service: ServiceName})
}

// SearchBody is the JSON form of a search request.
type SearchBody struct {
	Query    string             `json:"query"`
	TopK     int                `json:"top_k,omitempty"`
	PoolSize int                `json:"pool_size,omitempty"`
	Budget   *float64           `json:"budget,omitempty"`
	Category string             `json:"category,omitempty"`
	Weights  map[string]float64 `json:"weights,omitempty"`
	Explain  *bool              `json:"explain,omitempty"`
}

func (h *handler) searchQuery(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.runSearch(w, r, req)
}

func (h *handler) searchJSON(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSearchBody)
	var body SearchBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		WriteError(w, shoperrors.ValidationError("malformed search body", err))
		return
	}

	req := search.Request{
		Query:    body.Query,
		TopK:     body.TopK,
		PoolSize: body.PoolSize,
		Budget:   body.Budget,
		Category: body.Category,
		Weights:  body.Weights,
		Explain:  true,
	}
	if body.Explain != nil {
		req.Explain = *body.Explain
	}
	h.runSearch(w, r, req)
}

func (h *handler) runSearch(w http.ResponseWriter, r *http.Request, req search.Request) {
	resp, err := h.engine.Search(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteSuccess(w, http.StatusOK, resp)
}

func parseSearchQuery(r *http.Request) (search.Request, error) {
	q := r.URL.Query()
	if q.Get("query") == "" {
		return search.Request{}, shoperrors.ValidationError("query parameter is required", nil)
	}
	// Upper bound is enforced by the engine's configured max_top_k.
	topK, err := intParam(r, "top_k", 0, 1, math.MaxInt)
	if err != nil {
		return search.Request{}, err
	}
	poolSize, err := intParam(r, "pool_size", 0, 1, math.MaxInt)
	if err != nil {
		return search.Request{}, err
	}
	budget, err := floatParam(r, "budget")
	if err != nil {
		return search.Request{}, err
	}
	explainOn, err := boolParam(r, "explain", true)
	if err != nil {
		return search.Request{}, err
	}
	weights, err := weightsParam(r)
	if err != nil {
		return search.Request{}, err
	}
	return search.Request{
		Query:    q.Get("query"),
		TopK:     topK,
		PoolSize: poolSize,
		Budget:   budget,
		Category: q.Get("category"),
		Weights:  weights,
		Explain:  explainOn,
	}, nil
}

// sourceProduct resolves the path's product or writes a 404.
func (h *handler) sourceProduct(w http.ResponseWriter, r *http.Request) (catalog.Product, bool) {
	p, err := h.engine.Product(chi.URLParam(r, "productID"))
	if err != nil {
		WriteError(w, err)
		return catalog.Product{}, false
	}
	return p, true
}

func (h *handler) similar(w http.ResponseWriter, r *http.Request) {
	topK, err := intParam(r, "top_k", similarDefault, 1, similarMax)
	if err != nil {
		WriteError(w, err)
		return
	}
	p, ok := h.sourceProduct(w, r)
	if !ok {
		return
	}
	items, err := h.recommender.Similar(r.Context(), p.ID, topK)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteSuccess(w, http.StatusOK, items)
}

func (h *handler) complementary(w http.ResponseWriter, r *http.Request) {
	topK, err := intParam(r, "top_k", complementaryDefault, 1, complementaryMax)
	if err != nil {
		WriteError(w, err)
		return
	}
	p, ok := h.sourceProduct(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, http.StatusOK, h.recommender.Complementary(p.ID, topK))
}

func (h *handler) product(w http.ResponseWriter, r *http.Request) {
	p, ok := h.sourceProduct(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, http.StatusOK, p)
}

func (h *handler) categories(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, h.engine.Categories())
}

func (h *handler) stats(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, h.engine.Stats())
}

func (h *handler) queryStats(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, h.queryStatsStore.Snapshot())
}
