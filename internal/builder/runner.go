package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shoprank/shoprank/internal/catalog"
	"github.com/shoprank/shoprank/internal/embed"
	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/store"
	"github.com/shoprank/shoprank/internal/ui"
)

// ErrBuildInProgress is returned when another process holds the data dir lock.
var ErrBuildInProgress = errors.New("another build is running in this data directory")

// qdrantUpsertBatch bounds the points sent per upsert.
const qdrantUpsertBatch = 256

// RunnerConfig configures a build.
type RunnerConfig struct {
	// DataDir holds products_clean.json and receives the artifacts.
	DataDir string

	// Backend is the index to populate: hnsw, flat or qdrant.
	// flat is rebuilt from embeddings at load time, so nothing is written for it.
	Backend string
	HNSW    store.HNSWConfig
	Qdrant  store.QdrantConfig

	// BatchSize is the number of product texts per embedding call.
	BatchSize int

	// Concurrency bounds in-flight embedding batches.
	Concurrency int
}

// RunnerDependencies are injected into a Runner.
type RunnerDependencies struct {
	// Renderer displays progress (required).
	Renderer ui.Renderer

	// Embedder embeds product texts (required).
	Embedder embed.Embedder

	// OpenQdrant overrides the Qdrant connection. Nil uses store.NewQdrantIndex.
	OpenQdrant func(store.QdrantConfig) (store.VectorIndex, error)
}

// Result summarises a finished build.
type Result struct {
	Products   int
	Dimensions int
	Model      string
	Backend    string
	Duration   time.Duration
	Timings    map[ui.Stage]time.Duration
}

// Runner executes catalog builds.
type Runner struct {
	renderer   ui.Renderer
	embedder   embed.Embedder
	openQdrant func(store.QdrantConfig) (store.VectorIndex, error)
}

// NewRunner creates a Runner.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	open := deps.OpenQdrant
	if open == nil {
		open = func(cfg store.QdrantConfig) (store.VectorIndex, error) {
			return store.NewQdrantIndex(cfg)
		}
	}
	return &Runner{renderer: deps.Renderer, embedder: deps.Embedder, openQdrant: open}, nil
}

// Run reads the product catalog from cfg.DataDir and writes every artifact
// the server loads. Only one build may run per data directory.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*Result, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embed.DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Backend == "" {
		cfg.Backend = store.BackendHNSW
	}

	lock := NewFileLock(cfg.DataDir)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBuildInProgress
	}
	defer func() { _ = lock.Unlock() }()

	if err := r.renderer.Start(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = r.renderer.Stop() }()

	start := time.Now()
	timings := make(map[ui.Stage]time.Duration)
	paths := catalog.DefaultPaths(cfg.DataDir)

	stageStart := time.Now()
	r.renderer.Update(ui.ProgressEvent{Stage: ui.StageLoad, Message: "reading " + catalog.ProductsFile})
	products, err := catalog.ReadProducts(paths.Products)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, shoperrors.LoadFailure("product catalog is empty", nil)
	}
	timings[ui.StageLoad] = time.Since(stageStart)
	slog.Info("build_started",
		slog.Int("products", len(products)),
		slog.String("backend", cfg.Backend),
		slog.String("model", r.embedder.ModelName()))

	stageStart = time.Now()
	r.renderer.Update(ui.ProgressEvent{Stage: ui.StageFeatures, Message: "normalising features"})
	features := catalog.ComputeFeatures(products)
	mapping := catalog.NewMapping(products)
	if err := catalog.WriteFeatures(paths.Features, features); err != nil {
		return nil, err
	}
	if err := catalog.WriteMapping(paths.Mappings, mapping); err != nil {
		return nil, err
	}
	timings[ui.StageFeatures] = time.Since(stageStart)

	stageStart = time.Now()
	vectors, err := r.embedProducts(ctx, products, cfg)
	if err != nil {
		return nil, err
	}
	if err := catalog.WriteEmbeddings(paths.Embeddings, vectors); err != nil {
		return nil, err
	}
	timings[ui.StageEmbedding] = time.Since(stageStart)

	// Cross-check the artifacts exactly as the server will.
	if _, err := catalog.New(products, features, mapping, vectors); err != nil {
		return nil, err
	}

	stageStart = time.Now()
	if err := r.buildIndex(ctx, cfg, paths.Index, vectors); err != nil {
		return nil, err
	}
	timings[ui.StageIndexing] = time.Since(stageStart)

	result := &Result{
		Products:   len(products),
		Dimensions: r.embedder.Dimensions(),
		Model:      r.embedder.ModelName(),
		Backend:    cfg.Backend,
		Duration:   time.Since(start),
		Timings:    timings,
	}
	slog.Info("build_complete",
		slog.Int("products", result.Products),
		slog.Int("dimensions", result.Dimensions),
		slog.Int64("duration_ms", result.Duration.Milliseconds()),
		slog.Int64("duration_embed_ms", timings[ui.StageEmbedding].Milliseconds()),
		slog.Int64("duration_index_ms", timings[ui.StageIndexing].Milliseconds()))

	r.renderer.Complete(ui.Summary{
		Products:   result.Products,
		Dimensions: result.Dimensions,
		Embedder:   result.Model,
		Backend:    result.Backend,
		Duration:   result.Duration,
		Timings:    timings,
	})
	return result, nil
}

// embedProducts embeds every product text in batches, preserving order.
func (r *Runner) embedProducts(ctx context.Context, products []catalog.Product, cfg RunnerConfig) ([][]float32, error) {
	total := len(products)
	vectors := make([][]float32, total)
	var done atomic.Int64

	r.renderer.Update(ui.ProgressEvent{Stage: ui.StageEmbedding, Total: total})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for lo := 0; lo < total; lo += cfg.BatchSize {
		hi := min(lo+cfg.BatchSize, total)
		g.Go(func() error {
			texts := make([]string, 0, hi-lo)
			for _, p := range products[lo:hi] {
				texts = append(texts, catalog.EmbeddingText(p))
			}
			batch, err := r.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed products %d-%d: %w", lo, hi-1, err)
			}
			if len(batch) != len(texts) {
				return fmt.Errorf("embed products %d-%d: got %d vectors for %d texts", lo, hi-1, len(batch), len(texts))
			}
			copy(vectors[lo:hi], batch)
			n := done.Add(int64(hi - lo))
			r.renderer.Update(ui.ProgressEvent{Stage: ui.StageEmbedding, Current: int(n), Total: total})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (r *Runner) buildIndex(ctx context.Context, cfg RunnerConfig, path string, vectors [][]float32) error {
	dims := r.embedder.Dimensions()
	indices := make([]int, len(vectors))
	for i := range indices {
		indices[i] = i
	}

	switch cfg.Backend {
	case store.BackendFlat:
		r.renderer.Update(ui.ProgressEvent{Stage: ui.StageIndexing, Message: "flat index is built at load time"})
		return nil

	case store.BackendHNSW:
		r.renderer.Update(ui.ProgressEvent{Stage: ui.StageIndexing, Message: "building HNSW graph"})
		hcfg := cfg.HNSW
		hcfg.Dimensions = dims
		idx := store.NewHNSWIndex(hcfg)
		defer idx.Close()
		if err := idx.Add(ctx, indices, vectors); err != nil {
			return err
		}
		return idx.Save(path)

	case store.BackendQdrant:
		qcfg := cfg.Qdrant
		qcfg.Dimensions = dims
		idx, err := r.openQdrant(qcfg)
		if err != nil {
			return shoperrors.RetrievalUnavailable("qdrant unreachable", err)
		}
		defer idx.Close()
		if q, ok := idx.(*store.QdrantIndex); ok {
			if err := q.EnsureCollection(ctx); err != nil {
				return err
			}
		}
		for lo := 0; lo < len(vectors); lo += qdrantUpsertBatch {
			hi := min(lo+qdrantUpsertBatch, len(vectors))
			if err := idx.Add(ctx, indices[lo:hi], vectors[lo:hi]); err != nil {
				return err
			}
			r.renderer.Update(ui.ProgressEvent{Stage: ui.StageIndexing, Current: hi, Total: len(vectors), Message: "upserting to qdrant"})
		}
		return nil

	default:
		return shoperrors.ConfigError(fmt.Sprintf("unknown index backend %q", cfg.Backend), nil)
	}
}
