package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shoprank/shoprank/internal/config"
	"github.com/shoprank/shoprank/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the user configuration file and inspect the effective settings.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/shoprank/config.yaml)
  3. Project config (.shoprank.yaml in the working directory)
  4. Environment variables (SHOPRANK_*, GROQ_API_KEY), including .env`,
		Example: `  shoprank config init
  shoprank config show --json
  shoprank config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default user configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			path := config.GetUserConfigPath()

			if config.UserConfigExists() && !force {
				out.Warning("User configuration already exists")
				out.Statusf("", "Location: %s", path)
				out.Status("", "Use --force to back it up and write fresh defaults")
				return nil
			}

			backup, err := config.InitUserConfig(force)
			if err != nil {
				return err
			}
			out.Success("Created user configuration")
			out.Statusf("", "Location: %s", path)
			if backup != "" {
				out.Statusf("", "Backup:   %s", backup)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Back up and overwrite an existing configuration")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the configuration after merging defaults, the user config, the
project config and the environment. GROQ_API_KEY is never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(w, "# merged: defaults + user + project + env")
			if cfg.Explain.APIKey != "" {
				_, _ = fmt.Fprintln(w, "# GROQ_API_KEY: set")
			}
			_, err = w.Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
