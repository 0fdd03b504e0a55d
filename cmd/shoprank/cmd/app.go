package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/shoprank/shoprank/internal/catalog"
	"github.com/shoprank/shoprank/internal/config"
	"github.com/shoprank/shoprank/internal/embed"
	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/explain"
	"github.com/shoprank/shoprank/internal/recommend"
	"github.com/shoprank/shoprank/internal/search"
	"github.com/shoprank/shoprank/internal/store"
	"github.com/shoprank/shoprank/internal/telemetry"
)

// app is the loaded serving stack shared by the query commands, serve and mcp.
type app struct {
	cfg         *config.Config
	catalog     *catalog.Catalog
	embedder    embed.Embedder
	index       store.VectorIndex
	engine      *search.Engine
	recommender *recommend.Recommender
	metrics     *telemetry.Metrics
	queryStats  *telemetry.QueryStats
	history     *telemetry.SQLiteStore
}

// openApp loads the catalog artifacts and wires the engine. Any failure here
// is fatal to the caller.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	start := time.Now()
	paths := catalog.DefaultPaths(cfg.Data.Dir)

	cat, err := catalog.Load(paths)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(ctx, cfg, cat.Dimensions())
	if err != nil {
		return nil, err
	}

	index, err := store.Open(ctx, store.Options{
		Backend: cfg.Index.Backend,
		Path:    paths.Index,
		HNSW: store.HNSWConfig{
			Dimensions: cat.Dimensions(),
			M:          cfg.Index.M,
			EfSearch:   cfg.Index.EfSearch,
		},
		Qdrant: qdrantConfig(cfg, cat.Dimensions()),
	}, cat.Embeddings())
	if err != nil {
		_ = embedder.Close()
		if cfg.Index.Backend == store.BackendQdrant {
			return nil, shoperrors.RetrievalUnavailable("qdrant unreachable", err)
		}
		return nil, shoperrors.LoadFailure(fmt.Sprintf("failed to open %s index", cfg.Index.Backend), err)
	}
	if n := index.Len(); n != cat.Len() {
		_ = index.Close()
		_ = embedder.Close()
		return nil, shoperrors.New(shoperrors.ErrCodeArtifactInconsistent,
			fmt.Sprintf("%s index holds %d vectors for %d products", cfg.Index.Backend, n, cat.Len()), nil).
			WithSuggestion("Run 'shoprank build' to rebuild the index")
	}

	weights, err := search.DefaultWeights().Merge(cfg.Search.Weights)
	if err != nil {
		_ = index.Close()
		_ = embedder.Close()
		return nil, shoperrors.ConfigError("search.weights: "+err.Error(), err)
	}

	metrics := telemetry.NewMetrics()
	stats := telemetry.NewQueryStats(telemetry.QueryStatsConfig{})
	engine, err := search.NewEngine(cat, embedder, index, search.EngineConfig{
		DefaultTopK:        cfg.Search.DefaultTopK,
		MaxTopK:            cfg.Search.MaxTopK,
		PoolSize:           cfg.Search.PoolSize,
		Weights:            weights,
		ExplainConcurrency: cfg.Explain.Concurrency,
	},
		search.WithExplainer(newExplainer(cfg, metrics)),
		search.WithMetrics(metrics),
		search.WithQueryStats(stats),
	)
	if err != nil {
		_ = index.Close()
		_ = embedder.Close()
		return nil, err
	}

	slog.Info("catalog_loaded",
		slog.Int("products", cat.Len()),
		slog.Int("dimensions", cat.Dimensions()),
		slog.String("backend", cfg.Index.Backend),
		slog.String("embedder", embedder.ModelName()),
		slog.Duration("elapsed", time.Since(start)))

	return &app{
		cfg:         cfg,
		catalog:     cat,
		embedder:    embedder,
		index:       index,
		engine:      engine,
		recommender: recommend.New(cat, index, recommend.WithMetrics(metrics)),
		metrics:     metrics,
		queryStats:  stats,
	}, nil
}

// enableHistory persists this process's query stats to the data directory
// on Close. Long-running commands call it; one-shot queries do not.
func (a *app) enableHistory() {
	path := filepath.Join(a.cfg.Data.Dir, telemetry.HistoryFile)
	h, err := telemetry.OpenSQLiteStore(path)
	if err != nil {
		slog.Warn("query_history_disabled", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	a.history = h
}

// Close flushes query history and releases the index and embedder connections.
func (a *app) Close() error {
	if a.history != nil {
		if err := a.history.Save(time.Now().Format(time.DateOnly), a.queryStats.Snapshot()); err != nil {
			slog.Warn("query_history_save_failed", slog.String("error", err.Error()))
		}
		_ = a.history.Close()
		a.history = nil
	}
	ierr := a.index.Close()
	eerr := a.embedder.Close()
	if ierr != nil {
		return ierr
	}
	return eerr
}

func newEmbedder(ctx context.Context, cfg *config.Config, dims int) (embed.Embedder, error) {
	e, err := embed.New(ctx, embed.Options{
		Provider:   cfg.Embeddings.Provider,
		Dimensions: dims,
		Ollama: embed.OllamaConfig{
			Host:      cfg.Embeddings.OllamaHost,
			Model:     cfg.Embeddings.Model,
			BatchSize: cfg.Embeddings.BatchSize,
		},
		CacheSize: cfg.Embeddings.CacheSize,
		Redis:     embed.RedisConfig{Addr: cfg.Embeddings.RedisAddr},
	})
	if err != nil {
		return nil, shoperrors.ConfigError(err.Error(), err)
	}
	return e, nil
}

func qdrantConfig(cfg *config.Config, dims int) store.QdrantConfig {
	q := cfg.Index.Qdrant
	return store.QdrantConfig{
		Host:       q.Host,
		Port:       q.Port,
		APIKey:     q.APIKey,
		UseTLS:     q.UseTLS,
		Collection: q.Collection,
		Dimensions: dims,
	}
}

// newExplainer selects the explanation strategy. The LLM strategy degrades to
// templates when GROQ_API_KEY is unset.
func newExplainer(cfg *config.Config, metrics *telemetry.Metrics) explain.Explainer {
	if cfg.Explain.Strategy == "template" {
		return explain.TemplateExplainer{}
	}

	llm := explain.NewLLMExplainer(explain.LLMConfig{
		APIKey:      cfg.Explain.APIKey,
		URL:         cfg.Explain.URL,
		Model:       cfg.Explain.Model,
		MaxTokens:   cfg.Explain.MaxTokens,
		Temperature: cfg.Explain.Temperature,
		Timeout:     config.Duration(cfg.Explain.Timeout, explain.DefaultLLMTimeout),
	})
	breaker := shoperrors.NewCircuitBreaker("llm",
		shoperrors.WithMaxFailures(cfg.Explain.BreakerMaxFailures),
		shoperrors.WithResetTimeout(config.Duration(cfg.Explain.BreakerResetTimeout, 30*time.Second)),
	)
	return explain.New(llm,
		explain.WithBreaker(breaker),
		explain.WithDegradedHook(func(error) { metrics.ExplanationsDegraded.Inc() }),
	)
}
