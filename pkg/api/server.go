// Package api serves keyed datasets over a REST API.
//
// Every route under /api/v1 requires the X-API-Key header. Responses use the
// APIResponse envelope; failed dataset operations carry their result code in
// the code field. /metrics is left unprotected for scraping.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const shutdownTimeout = 10 * time.Second

// Router builds the HTTP handler with all routes configured
func (s *Server) Router() http.Handler {
	m := s.metrics

	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(m.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))

		r.Get("/health", m.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))
		r.Get("/datasets", m.InstrumentHandler("GET", "/api/v1/datasets", s.handleListDatasets))

		r.Route("/datasets/{name}", func(r chi.Router) {
			r.Get("/records", m.InstrumentHandler("GET", "/api/v1/datasets/{name}/records", s.handleScan))
			r.Post("/records", m.InstrumentHandler("POST", "/api/v1/datasets/{name}/records", s.handleWrite))

			r.Get("/records/{key}",
				m.InstrumentHandler("GET", "/api/v1/datasets/{name}/records/{key}", s.handleGetRecord))
			r.Patch("/records/{key}",
				m.InstrumentHandler("PATCH", "/api/v1/datasets/{name}/records/{key}", s.handleFindUpdate))
			r.Delete("/records/{key}",
				m.InstrumentHandler("DELETE", "/api/v1/datasets/{name}/records/{key}", s.handleFindDelete))

			r.Get("/first", m.InstrumentHandler("GET", "/api/v1/datasets/{name}/first", s.handleFirst))
			r.Get("/last", m.InstrumentHandler("GET", "/api/v1/datasets/{name}/last", s.handleLast))
		})
	})

	return r
}

// Addr is the listen address for the configured bind address and port
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// StartServer serves s until ctx is cancelled, then shuts down gracefully
func StartServer(ctx context.Context, s *Server) error {
	if s.config.APIKey == "" {
		return errors.New("an API key is required to start the server")
	}

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting keyds REST API server",
			"addr", srv.Addr,
			"datasets", s.registry.Names())
		s.logger.Info(fmt.Sprintf("metrics available at http://%s/metrics", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down REST API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
