// Package server assembles the HTTP API from the per-area handlers and
// owns the listener lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nettriq/rosfleet/internal/controlplane/backups"
	"github.com/nettriq/rosfleet/internal/controlplane/devices"
	"github.com/nettriq/rosfleet/internal/controlplane/routing"
	"github.com/nettriq/rosfleet/internal/controlplane/troubleshoot"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Deps carries the wired handlers. Metrics is any handler serving the
// Prometheus exposition format; nil disables the route.
type Deps struct {
	Devices      *devices.Handler
	Backups      *backups.Handler
	Troubleshoot *troubleshoot.Handler
	Routing      *routing.Handler
	Metrics      http.Handler
}

// Server is the control-plane HTTP front end.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// New builds the server. addr is the listen address, e.g. ":8730".
func New(addr string, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting api server",
		zap.String("addr", s.httpServer.Addr),
		zap.String("version", Version))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
