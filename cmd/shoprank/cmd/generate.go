package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shoprank/shoprank/internal/builder"
	"github.com/shoprank/shoprank/internal/catalog"
	"github.com/shoprank/shoprank/internal/output"
)

type generateOptions struct {
	count int
	seed  uint64
	force bool
}

func newGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic product catalog",
		Long: `Write a deterministic synthetic catalog to <data-dir>/products_clean.json.

The same --count and --seed always produce the same products. Run
'shoprank build' afterwards to compute features, embeddings and the index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.count, "count", "n", builder.DefaultProductCount, "Number of products")
	cmd.Flags().Uint64Var(&opts.seed, "seed", builder.DefaultSeed, "Random seed")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing catalog")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts generateOptions) error {
	if err := checkRange("count", opts.count, 1, 1_000_000); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	paths := catalog.DefaultPaths(cfg.Data.Dir)
	if _, err := os.Stat(paths.Products); err == nil && !opts.force {
		return fmt.Errorf("catalog already exists at %s (use --force to overwrite)", paths.Products)
	}
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	products := builder.Generate(builder.GenerateOptions{Count: opts.count, Seed: opts.seed})
	if err := catalog.WriteProducts(paths.Products, products); err != nil {
		return err
	}

	s := builder.Summarize(products)
	out := output.New(cmd.OutOrStdout())
	out.Successf("Generated %d products → %s", s.Products, paths.Products)
	out.Newline()
	out.KeyValue("Price", 8, fmt.Sprintf("$%.2f - $%.2f (avg $%.2f)", s.MinPrice, s.MaxPrice, s.AvgPrice))
	out.KeyValue("Rating", 8, fmt.Sprintf("%.1f - %.1f (avg %.2f)", s.MinRating, s.MaxRating, s.AvgRating))
	out.Newline()

	names := make([]string, 0, len(s.CategoryCounts))
	for name := range s.CategoryCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out.Line("  %-24s %d", name, s.CategoryCounts[name])
	}
	out.Newline()
	out.Status("→", "Next: shoprank build")
	return nil
}
