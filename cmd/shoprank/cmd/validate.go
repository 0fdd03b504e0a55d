package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shoprank/shoprank/internal/output"
	"github.com/shoprank/shoprank/internal/validation"
)

var errValidationFailed = errors.New("ranking validation failed")

func newValidateCmd() *cobra.Command {
	var suitePath, format string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run ranking checks against the built catalog",
		Long: `Run a YAML suite of ranking checks against the loaded engine.

Tier 1 checks and negative checks must pass; tier 2 relevance targets are
reported only. Without --suite the built-in suite is used.`,
		Example: `  shoprank validate
  shoprank validate --suite my-queries.yaml --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			suite, err := validation.LoadSuite(suitePath)
			if err != nil {
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

			report := validation.NewValidator(a.engine).RunAll(cmd.Context(), suite)

			if format == "json" {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printReport(output.New(cmd.OutOrStdout()), report)
			}
			if !report.Passed() {
				return errValidationFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&suitePath, "suite", "", "Query suite YAML (default: built-in)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func printReport(out *output.Writer, r *validation.Report) {
	section := func(title string, results []validation.TestResult) {
		p, n := validation.Counts(results)
		out.Heading(fmt.Sprintf("%s (%d/%d)", title, p, n))
		for _, tr := range results {
			if tr.Passed {
				out.Success(fmt.Sprintf("%s %s", tr.Spec.ID, tr.Spec.Name))
				continue
			}
			out.Error(fmt.Sprintf("%s %s", tr.Spec.ID, tr.Spec.Name))
			out.Status("", out.Dim(tr.Reason))
		}
		out.Newline()
	}
	section("Tier 1", r.Tier1)
	section("Tier 2", r.Tier2)
	section("Negative", r.Negative)
}
