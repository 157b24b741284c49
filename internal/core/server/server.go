// Package server assembles the chi router and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sedn/nbn-facade/internal/core/config"
	"github.com/sedn/nbn-facade/internal/core/health"
	"github.com/sedn/nbn-facade/internal/core/middleware"
	"github.com/sedn/nbn-facade/internal/core/router"
	"github.com/sedn/nbn-facade/internal/metrics"
	"github.com/sedn/nbn-facade/internal/query"
)

// Deps are the collaborators the HTTP surface needs. Store and Consumer are
// optional readiness dependencies.
type Deps struct {
	Service  query.Interface
	Metrics  *metrics.Provider
	Store    health.Pinger
	Consumer health.ReadinessReporter
}

// Handler builds the full route tree.
func Handler(logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Store, d.Consumer))
	if d.Metrics != nil && d.Metrics.Enabled() {
		r.Handle(d.Metrics.Path(), d.Metrics.Handler())
	}
	router.New(logger, d.Service).Mount(r)
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Handler(logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
