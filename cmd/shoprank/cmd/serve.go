package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shoprank/shoprank/internal/api"
	"github.com/shoprank/shoprank/internal/logging"
	"github.com/shoprank/shoprank/pkg/version"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP search API",
		Long: `Load the catalog artifacts and serve the HTTP API.

Endpoints:
  GET  /health
  GET  /search?q=...&top_k=&budget=&category=&explain=&weights=
  POST /search
  GET  /similar/{product_id}?top_k=
  GET  /complementary/{product_id}?top_k=
  GET  /product/{product_id}
  GET  /categories
  GET  /stats
  GET  /stats/queries
  GET  /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8000)")
	return cmd
}

func runServe(cmd *cobra.Command, addr string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	// The server logs at its configured level unless --debug asked for more.
	if !debugMode {
		logCfg := logging.DefaultConfig()
		logCfg.Level = cfg.Server.LogLevel
		cleanup, err := logging.SetupDefault(logCfg)
		if err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
		defer cleanup()
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	a.enableHistory()
	defer func() { _ = a.Close() }()

	server := api.NewServer(api.NewRouter(api.Dependencies{
		Engine:      a.engine,
		Recommender: a.recommender,
		Metrics:     a.metrics,
		QueryStats:  a.queryStats,
	}), cfg.Server)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	slog.Info("server_started",
		slog.String("addr", server.Addr()),
		slog.String("version", version.Version),
		slog.Int("products", a.catalog.Len()))
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "shoprank serving %d products on %s\n", a.catalog.Len(), server.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return <-errCh
}
