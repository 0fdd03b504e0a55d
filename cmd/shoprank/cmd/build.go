package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shoprank/shoprank/internal/builder"
	"github.com/shoprank/shoprank/internal/catalog"
	"github.com/shoprank/shoprank/internal/output"
	"github.com/shoprank/shoprank/internal/store"
	"github.com/shoprank/shoprank/internal/ui"
)

type buildOptions struct {
	backend     string
	concurrency int
	plain       bool
	noColor     bool
}

func newBuildCmd() *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compute features, embeddings and the vector index",
		Long: `Build every artifact the search engine loads from products_clean.json:

  products_features.json   normalised ranking features
  id_mappings.json         product id <-> index mapping
  embeddings.gob           product embeddings
  product_index.hnsw       HNSW graph (hnsw backend only)

With --backend qdrant the vectors are upserted into the configured Qdrant
collection instead of a local graph.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", "", "Index backend: hnsw, flat, qdrant (default from config)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "Embedding batches in flight")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain progress output (no TUI)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")
	return cmd
}

func runBuild(cmd *cobra.Command, opts buildOptions) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.backend != "" {
		cfg.Index.Backend = opts.backend
	}
	switch cfg.Index.Backend {
	case store.BackendHNSW, store.BackendFlat, store.BackendQdrant:
	default:
		return fmt.Errorf("unknown index backend %q (use hnsw, flat or qdrant)", cfg.Index.Backend)
	}

	paths := catalog.DefaultPaths(cfg.Data.Dir)
	if _, err := os.Stat(paths.Products); err != nil {
		return fmt.Errorf("no catalog at %s. Run 'shoprank generate' first", paths.Products)
	}

	embedder, err := newEmbedder(ctx, cfg, cfg.Embeddings.Dimensions)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	runner, err := builder.NewRunner(builder.RunnerDependencies{
		Renderer: ui.NewRenderer(ui.Config{
			Output:     cmd.OutOrStdout(),
			ForcePlain: opts.plain,
			NoColor:    opts.noColor,
		}),
		Embedder: embedder,
	})
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx, builder.RunnerConfig{
		DataDir: cfg.Data.Dir,
		Backend: cfg.Index.Backend,
		HNSW: store.HNSWConfig{
			M:        cfg.Index.M,
			EfSearch: cfg.Index.EfSearch,
		},
		Qdrant:      qdrantConfig(cfg, embedder.Dimensions()),
		BatchSize:   cfg.Embeddings.BatchSize,
		Concurrency: opts.concurrency,
	})
	if errors.Is(err, builder.ErrBuildInProgress) {
		return fmt.Errorf("%w: %s", err, cfg.Data.Dir)
	}
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Newline()
	out.Successf("Built %d products with %s (%d dims) into %s", result.Products, result.Model, result.Dimensions, cfg.Data.Dir)
	return nil
}
