package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/output"
)

type recommendOptions struct {
	topK   int
	format string
}

func newSimilarCmd() *cobra.Command {
	var opts recommendOptions

	cmd := &cobra.Command{
		Use:   "similar <product-id>",
		Short: "List products closest to a product in embedding space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkRange("top-k", opts.topK, 1, 50); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			source, err := a.engine.Product(args[0])
			if err != nil {
				return err
			}
			items, err := a.recommender.Similar(cmd.Context(), source.ID, opts.topK)
			if err != nil {
				return err
			}

			if opts.format == "json" {
				return writeJSON(cmd, map[string]any{"product_id": source.ID, "similar_products": items})
			}
			out := output.New(cmd.OutOrStdout())
			out.Heading(fmt.Sprintf("Similar to %s (%s)", source.Title, source.ID))
			if len(items) == 0 {
				out.Status("", "No similar products found")
				return nil
			}
			for i, it := range items {
				out.Line("%2d. %s  %s", i+1, it.Title, out.Dim(it.ProductID))
				out.Line("    $%.2f  %.1f★  similarity %s %.4f", it.Price, it.Rating, output.Bar(it.SimilarityScore, 10), it.SimilarityScore)
				out.Line("    %s", out.Dim(it.Reason))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 10, "Number of recommendations (max 50)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func newComplementaryCmd() *cobra.Command {
	var opts recommendOptions

	cmd := &cobra.Command{
		Use:   "complementary <product-id>",
		Short: "List products that pair well with a product",
		Long: `List products from complementary subcategories, for example cases and
chargers for a smartphone. Picks are ordered by rating, then popularity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkRange("top-k", opts.topK, 1, 20); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			source, err := a.engine.Product(args[0])
			if err != nil {
				return err
			}
			items := a.recommender.Complementary(source.ID, opts.topK)

			if opts.format == "json" {
				return writeJSON(cmd, map[string]any{"product_id": source.ID, "complementary_products": items})
			}
			out := output.New(cmd.OutOrStdout())
			out.Heading(fmt.Sprintf("Goes well with %s (%s)", source.Title, source.ID))
			if len(items) == 0 {
				out.Status("", "No complementary products for "+source.Subcategory)
				return nil
			}
			for i, it := range items {
				out.Line("%2d. %s  %s", i+1, it.Title, out.Dim(it.ProductID))
				out.Line("    $%.2f  %.1f★  %s", it.Price, it.Rating, out.Dim(it.Reason))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 5, "Number of recommendations (max 20)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func checkRange(flag string, v, lo, hi int) error {
	if v < lo || v > hi {
		return shoperrors.ValidationError(fmt.Sprintf("--%s must be between %d and %d, got %d", flag, lo, hi, v), nil)
	}
	return nil
}
