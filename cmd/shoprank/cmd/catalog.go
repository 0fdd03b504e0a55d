package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/output"
	"github.com/shoprank/shoprank/internal/telemetry"
)

func newProductCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "product <product-id>",
		Short: "Show one catalog product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			p, err := a.engine.Product(args[0])
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(cmd, p)
			}

			out := output.New(cmd.OutOrStdout())
			out.Heading(p.Title)
			out.KeyValue("ID", 12, p.ID)
			out.KeyValue("Brand", 12, p.Brand)
			out.KeyValue("Category", 12, p.Category+" / "+p.Subcategory)
			out.KeyValue("Price", 12, fmt.Sprintf("$%.2f", p.Price))
			out.KeyValue("Rating", 12, fmt.Sprintf("%.1f (%d reviews)", p.Rating, p.ReviewCount))
			out.KeyValue("Popularity", 12, fmt.Sprintf("%.3f", p.PopularityScore))
			out.KeyValue("In stock", 12, p.InStock)
			out.Newline()
			out.Line("%s", p.Description)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func newCategoriesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List catalog categories and subcategories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			list := a.engine.Categories()
			if format == "json" {
				return writeJSON(cmd, list)
			}
			out := output.New(cmd.OutOrStdout())
			out.Heading(fmt.Sprintf("Categories (%d)", len(list.Categories)))
			for _, c := range list.Categories {
				out.Line("  %s", c)
			}
			out.Newline()
			out.Heading(fmt.Sprintf("Subcategories (%d)", len(list.Subcategories)))
			out.Line("  %s", strings.Join(list.Subcategories, ", "))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var (
		format  string
		queries bool
		days    int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog and index statistics",
		Long: `Show catalog and index statistics.

With --queries, show the query history that serve and mcp record in
<data-dir>/telemetry.db instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if queries {
				if err := checkRange("days", days, 1, 3650); err != nil {
					return err
				}
				return runQueryHistory(cmd, cfg.Data.Dir, days, format)
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats := a.engine.Stats()
			if format == "json" {
				return writeJSON(cmd, stats)
			}

			out := output.New(cmd.OutOrStdout())
			out.Heading("Catalog")
			out.KeyValue("Products", 14, stats.TotalProducts)
			out.KeyValue("Index size", 14, stats.IndexSize)
			out.KeyValue("Backend", 14, cfg.Index.Backend)
			out.KeyValue("Embedder", 14, a.embedder.ModelName())
			out.KeyValue("Dimensions", 14, stats.EmbeddingDimension)
			out.KeyValue("Categories", 14, stats.Categories)
			out.KeyValue("Subcategories", 14, stats.Subcategories)
			out.Newline()

			names := make([]string, 0, len(stats.CategoryCounts))
			for name := range stats.CategoryCounts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				n := stats.CategoryCounts[name]
				share := float64(n) / float64(max(1, stats.TotalProducts))
				out.Line("  %-24s %s %d", name, output.Bar(share, 20), n)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&queries, "queries", false, "Show recorded query history")
	cmd.Flags().IntVar(&days, "days", 7, "History window in days (with --queries)")
	return cmd
}

func runQueryHistory(cmd *cobra.Command, dataDir string, days int, format string) error {
	path := filepath.Join(dataDir, telemetry.HistoryFile)
	if _, err := os.Stat(path); err != nil {
		return shoperrors.New(shoperrors.ErrCodeNotFound,
			fmt.Sprintf("no query history at %s", path), err).
			WithSuggestion("Run 'shoprank serve' or 'shoprank mcp' to record queries")
	}
	db, err := telemetry.OpenSQLiteStore(path)
	if err != nil {
		return shoperrors.LoadFailure("failed to open query history", err)
	}
	defer func() { _ = db.Close() }()

	now := time.Now()
	from := now.AddDate(0, 0, -(days - 1)).Format(time.DateOnly)
	h, err := db.History(from, now.Format(time.DateOnly), 10)
	if err != nil {
		return shoperrors.LoadFailure("failed to read query history", err)
	}
	if format == "json" {
		return writeJSON(cmd, h)
	}

	out := output.New(cmd.OutOrStdout())
	out.Heading(fmt.Sprintf("Queries (last %d days)", days))
	out.KeyValue("Total", 14, h.TotalQueries)
	out.KeyValue("Failed", 14, h.FailedQueries)
	out.KeyValue("Zero results", 14, h.ZeroResultCount)
	out.KeyValue("Active days", 14, h.Days)
	if len(h.TopTerms) > 0 {
		out.Newline()
		out.Heading("Top terms")
		for _, tc := range h.TopTerms {
			out.Line("  %-24s %d", tc.Term, tc.Count)
		}
	}
	if len(h.ZeroResults) > 0 {
		out.Newline()
		out.Heading("Recent zero-result queries")
		for _, q := range h.ZeroResults {
			out.Line("  %s", q)
		}
	}
	return nil
}
