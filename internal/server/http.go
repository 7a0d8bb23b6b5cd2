package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copyleftdev/shakelines/internal/config"
	apperrors "github.com/copyleftdev/shakelines/internal/errors"
	"github.com/copyleftdev/shakelines/internal/logging"
)

// NewRouter builds the HTTP handler: middleware, health and metrics
// endpoints, and the API routes of srv.
func NewRouter(logger *logging.Logger, srv *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(apperrors.RecoveryMiddleware(logger))
	r.Use(apperrors.ErrorHandler(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	srv.RegisterRoutes(r)
	return r
}

// ListenAndServe serves the API until ctx is done, then shuts down
// gracefully and cancels the remaining jobs.
func ListenAndServe(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	serviceLogger := logger.WithFields(map[string]interface{}{
		"service": "shakelines",
	})

	srv, err := NewServer(cfg, serviceLogger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      NewRouter(logger, srv),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		serviceLogger.Info("Starting server", map[string]interface{}{
			"address": httpServer.Addr,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = srv.Close()
			return apperrors.Wrap(err, "listen").WithComponent("server")
		}
	case <-ctx.Done():
	}

	serviceLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return apperrors.Wrap(err, "server forced to shutdown").WithComponent("server")
	}
	if err := srv.Close(); err != nil {
		serviceLogger.Error("error closing server resources", map[string]interface{}{"error": err.Error()})
	}

	serviceLogger.Info("server exited properly")
	return nil
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.HTTP.ShutdownTimeout > 0 {
		return cfg.HTTP.ShutdownTimeout
	}
	return 30 * time.Second
}
