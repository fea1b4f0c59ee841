// Package server runs the HTTP listener with graceful shutdown.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/ingrediscan-go/internal/config"
	"github.com/anime-shed/ingrediscan-go/internal/logger"
)

// ShutdownTimeout bounds how long in-flight requests may take to drain
const ShutdownTimeout = 30 * time.Second

// New creates the HTTP server with configurable timeouts. The write timeout
// leaves headroom over the request timeout so a timed out analysis can still
// send its classified result.
func New(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func Run(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	ln, err := net.Listen("tcp", cfg.ServerAddress())
	if err != nil {
		return err
	}
	return Serve(ctx, New(cfg, handler), ln)
}

// Serve runs srv on ln until ctx is cancelled
func Serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"address": ln.Addr().String(),
			"timeout": srv.ReadTimeout.String(),
		}).Info("Starting HTTP server")

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("Server exited")
	return nil
}
