// Package cmd provides the CLI commands for shoprank.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shoprank/shoprank/internal/config"
	shoperrors "github.com/shoprank/shoprank/internal/errors"
	"github.com/shoprank/shoprank/internal/logging"
	"github.com/shoprank/shoprank/internal/profiling"
	"github.com/shoprank/shoprank/pkg/version"
)

// Persistent flags.
var (
	debugMode      bool
	dataDirFlag    string
	loggingCleanup func()

	profileCfg profiling.Config
	profiler   *profiling.Session
)

// NewRootCmd creates the root command for the shoprank CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shoprank",
		Short: "Intent-aware product search and ranking",
		Long: `shoprank ranks catalog products for a natural language shopping query.

Candidates come from embedding similarity and are re-scored with price,
popularity, rating, review trust and stock signals, shifted by the price and
category intent read from the query. Every result carries a score breakdown
and a short explanation.

Typical flow:
  shoprank generate          # synthetic catalog into ./data
  shoprank build             # features, embeddings and vector index
  shoprank search "cheap wireless headphones"
  shoprank serve             # HTTP API on :8000`,
		Version:            version.Version,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  setupRun,
		PersistentPostRunE: finishRun,
	}
	cmd.SetVersionTemplate("shoprank version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.shoprank/logs/")
	cmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Catalog artifact directory (overrides data.dir)")
	cmd.PersistentFlags().StringVar(&profileCfg.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileCfg.Heap, "profile-mem", "", "Write heap profile to file")
	cmd.PersistentFlags().StringVar(&profileCfg.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSimilarCmd())
	cmd.AddCommand(newComplementaryCmd())
	cmd.AddCommand(newProductCmd())
	cmd.AddCommand(newCategoriesCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupRun loads .env, starts any requested profiles and installs the logger.
// Commands that own stdio (mcp) or set their own level (serve) replace the
// logger later.
func setupRun(_ *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if profileCfg.Enabled() {
		session, err := profiling.Start(profileCfg)
		if err != nil {
			return err
		}
		profiler = session
	}

	cfg := logging.DefaultConfig()
	cfg.Level = "warn"
	if debugMode {
		cfg = logging.DebugConfig()
	}
	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return nil
}

func finishRun(_ *cobra.Command, _ []string) error {
	var err error
	if profiler != nil {
		err = profiler.Stop()
		profiler = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// loadConfig resolves configuration from the working directory and applies
// the --data-dir flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, shoperrors.ConfigError(err.Error(), err)
	}
	if dataDirFlag != "" {
		cfg.Data.Dir = dataDirFlag
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, shoperrors.FormatForCLI(err))
	}
	return err
}
