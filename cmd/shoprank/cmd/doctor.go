package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/shoprank/shoprank/internal/preflight"
)

// errDoctorFailed is returned when a required check fails.
var errDoctorFailed = errors.New("system check failed")

func newDoctorCmd() *cobra.Command {
	var verbose, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that shoprank can serve from the data directory",
		Long: `Run diagnostics against the effective configuration.

Checks:
  - Data directory is writable with 100MB free
  - All catalog artifacts are present
  - Ollama answers (embeddings.provider: ollama)
  - Qdrant answers (index.backend: qdrant)
  - Redis answers (embeddings.redis_addr set, warning only)
  - Which explanation strategy will run

Exits non-zero when a required check fails.`,
		Example: `  shoprank doctor
  shoprank doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			checker := preflight.New(
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
			)
			results := checker.RunAll(cmd.Context(), cfg)

			if jsonOutput {
				if err := writeJSON(cmd, map[string]any{
					"status": preflight.SummaryStatus(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if preflight.HasCriticalFailures(results) {
				return errDoctorFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for passing checks too")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
