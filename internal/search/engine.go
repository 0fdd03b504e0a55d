package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/shoprank/shoprank/internal/catalog"
	"github.com/shoprank/shoprank/internal/embed"
	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/explain"
	"github.com/shoprank/shoprank/internal/intent"
	"github.com/shoprank/shoprank/internal/store"
	"github.com/shoprank/shoprank/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// EngineConfig holds request defaults and bounds.
type EngineConfig struct {
	DefaultTopK        int
	MaxTopK            int
	PoolSize           int
	Weights            Weights
	ExplainConcurrency int
}

// DefaultEngineConfig returns the stock defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultTopK:        20,
		MaxTopK:            100,
		PoolSize:           100,
		Weights:            DefaultWeights(),
		ExplainConcurrency: explain.DefaultConcurrency,
	}
}

// Engine runs the ranking pipeline. It is built once at startup and shared by
// every request; all of its state is read-only after construction.
type Engine struct {
	catalog   *catalog.Catalog
	index     store.VectorIndex
	retriever *Retriever
	config    EngineConfig
	explainer explain.Explainer
	metrics   *telemetry.Metrics
	stats     *telemetry.QueryStats
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithExplainer sets the strategy used when a request asks for explanations.
func WithExplainer(ex explain.Explainer) EngineOption {
	return func(e *Engine) {
		e.explainer = ex
	}
}

// WithMetrics records Prometheus metrics per search.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithQueryStats records query patterns per search.
func WithQueryStats(s *telemetry.QueryStats) EngineOption {
	return func(e *Engine) {
		e.stats = s
	}
}

// NewEngine creates an engine over a loaded catalog and its vector index.
func NewEngine(
	cat *catalog.Catalog,
	embedder embed.Embedder,
	index store.VectorIndex,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if cat == nil {
		return nil, fmt.Errorf("%w: catalog is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if index == nil {
		return nil, fmt.Errorf("%w: vector index is required", ErrNilDependency)
	}
	if config.Weights == nil {
		config.Weights = DefaultWeights()
	}
	if config.DefaultTopK <= 0 {
		config.DefaultTopK = 20
	}
	if config.MaxTopK <= 0 {
		config.MaxTopK = 100
	}
	if config.PoolSize <= 0 {
		config.PoolSize = 100
	}

	e := &Engine{
		catalog:   cat,
		index:     index,
		retriever: NewRetriever(embedder, index, cat),
		config:    config,
		explainer: explain.TemplateExplainer{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Catalog returns the loaded catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Index returns the vector index.
func (e *Engine) Index() store.VectorIndex {
	return e.index
}

// Search runs retrieval, enrichment, scoring and re-ranking for one request.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, in, pool, err := e.search(ctx, req)
	elapsed := time.Since(start)
	e.record(req.Query, in, resp, pool, elapsed, err)
	if err != nil {
		return nil, err
	}

	resp.LatencyMs = math.Round(float64(elapsed.Microseconds())/10) / 100
	slog.Debug("search_complete",
		slog.String("query", req.Query),
		slog.Int("results", resp.TotalResults),
		slog.Int("pool", pool),
		slog.Duration("elapsed", elapsed))
	return resp, nil
}

func (e *Engine) search(ctx context.Context, req Request) (*Response, intent.Intent, int, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, intent.Intent{}, 0, shoperrors.ValidationError("query must not be empty", nil)
	}
	topK, poolSize, err := e.bounds(req)
	if err != nil {
		return nil, intent.Intent{}, 0, err
	}
	if req.Budget != nil && (!isFinite(*req.Budget) || *req.Budget <= 0) {
		return nil, intent.Intent{}, 0, shoperrors.ValidationError(fmt.Sprintf("budget must be positive, got %g", *req.Budget), nil)
	}
	weights, err := e.config.Weights.Merge(req.Weights)
	if err != nil {
		return nil, intent.Intent{}, 0, err
	}

	cands, err := e.retriever.Retrieve(ctx, query, poolSize)
	if err != nil {
		return nil, intent.Intent{}, 0, err
	}
	if req.Category != "" {
		cands = ApplyFilters(cands, CategoryFilter(req.Category))
	}

	in := intent.Infer(query)
	if req.Category != "" {
		in.Category = req.Category
	}

	cands, err = Enrich(cands, e.catalog, EnrichParams{
		Category: in.Category,
		Price:    in.Price,
		Budget:   req.Budget,
	})
	if err != nil {
		return nil, in, 0, err
	}
	Score(cands, weights)
	ranked := Rerank(cands, topK)

	resp := &Response{
		Query:        query,
		TotalResults: len(ranked),
		Results:      make([]Result, len(ranked)),
	}
	for i, c := range ranked {
		resp.Results[i] = Result{
			Rank:           i + 1,
			Product:        c.Product,
			FinalScore:     c.FinalScore,
			ScoreBreakdown: c.Breakdown,
		}
	}
	if req.Explain {
		e.attachExplanations(ctx, query, resp.Results)
	}
	return resp, in, len(cands), nil
}

func (e *Engine) bounds(req Request) (topK, poolSize int, err error) {
	topK = req.TopK
	if topK == 0 {
		topK = e.config.DefaultTopK
	}
	if topK < 1 || topK > e.config.MaxTopK {
		return 0, 0, shoperrors.ValidationError(fmt.Sprintf("top_k must be between 1 and %d, got %d", e.config.MaxTopK, topK), nil)
	}
	poolSize = req.PoolSize
	if poolSize == 0 {
		poolSize = e.config.PoolSize
	}
	if poolSize < 1 {
		return 0, 0, shoperrors.ValidationError(fmt.Sprintf("pool_size must be positive, got %d", poolSize), nil)
	}
	return topK, poolSize, nil
}

func (e *Engine) attachExplanations(ctx context.Context, query string, results []Result) {
	inputs := make([]explain.Input, len(results))
	for i, r := range results {
		inputs[i] = explain.Input{
			Query:     query,
			Rank:      r.Rank,
			Product:   r.Product,
			Breakdown: r.ScoreBreakdown,
		}
	}
	exps := explain.Batch(ctx, e.explainer, inputs, e.config.ExplainConcurrency)
	for i := range results {
		results[i].Explanation = &exps[i]
	}
}

func (e *Engine) record(query string, in intent.Intent, resp *Response, pool int, elapsed time.Duration, err error) {
	status := telemetry.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, shoperrors.ErrInvalidInput):
		status = telemetry.StatusInvalid
	case errors.Is(err, shoperrors.ErrRetrievalUnavailable):
		status = telemetry.StatusUnavailable
	default:
		status = telemetry.StatusError
	}
	if err != nil {
		slog.Warn("search_failed", append([]any{slog.String("query", query)}, shoperrors.LogAttrs(err)...)...)
	}

	if e.metrics != nil {
		e.metrics.ObserveSearch(status, elapsed, pool)
	}
	if e.stats != nil {
		ev := telemetry.QueryEvent{
			Query:       query,
			Category:    in.Category,
			PriceIntent: string(in.Price),
			Latency:     elapsed,
			Failed:      err != nil,
		}
		if resp != nil {
			ev.ResultCount = resp.TotalResults
		}
		e.stats.Record(ev)
	}
}

// Product returns a single product or a NotFound error.
func (e *Engine) Product(id string) (catalog.Product, error) {
	p, ok := e.catalog.Product(id)
	if !ok {
		return catalog.Product{}, shoperrors.NotFound(id)
	}
	return p, nil
}

// CategoryList is the distinct category and subcategory names.
type CategoryList struct {
	Categories    []string `json:"categories"`
	Subcategories []string `json:"subcategories"`
}

// Categories lists sorted distinct categories and subcategories.
func (e *Engine) Categories() CategoryList {
	return CategoryList{
		Categories:    e.catalog.Categories(),
		Subcategories: e.catalog.Subcategories(),
	}
}

// Stats describes the loaded catalog and index.
type Stats struct {
	catalog.Stats
	IndexSize int `json:"index_size"`
}

// Stats reports catalog and index sizes.
func (e *Engine) Stats() Stats {
	return Stats{Stats: e.catalog.Stats(), IndexSize: e.index.Len()}
}
