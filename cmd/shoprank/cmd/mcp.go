package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shoprank/shoprank/internal/logging"
	"github.com/shoprank/shoprank/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve search tools over MCP on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout so AI assistants can
call search, similar, complementary, product and catalog_status.

Logs go to ~/.shoprank/logs/server.log because stdio carries JSON-RPC.

Example client entry:
  {"command": "shoprank", "args": ["mcp"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			level := "info"
			if debugMode {
				level = "debug"
			}
			cleanup, err := logging.SetupStdioMode(level)
			if err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}
			defer cleanup()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			a.enableHistory()
			defer func() { _ = a.Close() }()

			server, err := mcp.NewServer(a.engine, a.recommender, a.embedder)
			if err != nil {
				return err
			}
			server.SetQueryStats(a.queryStats)
			return server.Serve(ctx, "stdio")
		},
	}
}
