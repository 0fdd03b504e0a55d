package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/output"
	"github.com/shoprank/shoprank/internal/search"
)

type searchOptions struct {
	topK      int
	budget    float64
	category  string
	weights   map[string]string
	noExplain bool
	format    string // text | json
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank catalog products for a shopping query",
		Long: `Rank catalog products for a natural language shopping query.

Price words ("cheap", "premium", "under $50") and category words
("headphones", "yoga") shift the ranking. Each result shows its score
breakdown and a short explanation.

Examples:
  shoprank search "cheap wireless headphones"
  shoprank search "running shoes" --budget 80 --top-k 5
  shoprank search "gift" --category "Toys & Games" --format json
  shoprank search "laptop" --weight price_score=0.5 --weight rating_score=0.3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of results (default from config)")
	cmd.Flags().Float64Var(&opts.budget, "budget", 0, "Maximum price; enables the budget_match signal")
	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "Restrict results to one category")
	cmd.Flags().StringToStringVarP(&opts.weights, "weight", "w", nil, "Override a ranking weight, e.g. price_score=0.4 (repeatable)")
	cmd.Flags().BoolVar(&opts.noExplain, "no-explain", false, "Skip explanation generation")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	weights, err := parseWeightFlags(opts.weights)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	req := search.Request{
		Query:    query,
		TopK:     opts.topK,
		Category: opts.category,
		Weights:  weights,
		Explain:  !opts.noExplain,
	}
	if cmd.Flags().Changed("budget") {
		b := opts.budget
		req.Budget = &b
	}

	resp, err := a.engine.Search(ctx, req)
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.String("query", query), slog.Int("results", resp.TotalResults))

	if opts.format == "json" {
		return writeJSON(cmd, resp)
	}
	formatSearchText(output.New(cmd.OutOrStdout()), resp)
	return nil
}

// parseWeightFlags converts name=value pairs. Names are validated by the engine.
func parseWeightFlags(raw map[string]string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	weights := make(map[string]float64, len(raw))
	for name, value := range raw {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, shoperrors.ValidationError(fmt.Sprintf("weight %s: %q is not a number", name, value), err)
		}
		weights[name] = v
	}
	return weights, nil
}

func formatSearchText(out *output.Writer, resp *search.Response) {
	if len(resp.Results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", resp.Query))
		return
	}

	out.Heading(fmt.Sprintf("%d results for %q (%.1fms)", resp.TotalResults, resp.Query, resp.LatencyMs))
	for _, r := range resp.Results {
		out.Newline()
		out.Line("%2d. %s  %s", r.Rank, r.Title, out.Dim(r.ID))
		out.Line("    $%.2f  %.1f★ (%d reviews)  %s / %s%s",
			r.Price, r.Rating, r.ReviewCount, r.Category, r.Subcategory, stockNote(r.InStock))
		out.Line("    score %s %.4f", output.Bar(r.FinalScore, 20), r.FinalScore)

		b := r.ScoreBreakdown
		out.Line("    %s", out.Dim(fmt.Sprintf("text %.2f  price %.2f  popularity %.2f  rating %.2f  category %.2f",
			b.TextSimilarity, b.PriceScore, b.PopularityScore, b.RatingScore, b.CategoryMatch)))
		if r.Explanation != nil {
			out.Line("    %s", out.Accent(r.Explanation.Short))
			if len(r.Explanation.Highlights) > 0 {
				out.Line("    %s", strings.Join(r.Explanation.Highlights, " · "))
			}
		}
	}
}

func stockNote(inStock bool) string {
	if inStock {
		return ""
	}
	return "  (out of stock)"
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
