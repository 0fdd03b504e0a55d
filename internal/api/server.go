package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shoprank/shoprank/internal/config"
)

// Server wraps http.Server with the configured timeouts.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a server for handler using cfg's address and timeouts.
// Unparseable timeouts fall back to the defaults.
func NewServer(handler http.Handler, cfg config.ServerConfig) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       config.Duration(cfg.ReadTimeout, 10*time.Second),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      config.Duration(cfg.WriteTimeout, 30*time.Second),
			IdleTimeout:       config.Duration(cfg.IdleTimeout, 60*time.Second),
		},
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run blocks until the server stops. A graceful Stop is not an error.
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
