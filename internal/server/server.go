// Package server implements the read API (C10) and exposes the job runner
// (C9) over HTTP: job submission/status/listing/cleanup, and read-only
// JSON endpoints over the record store.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"gazette/internal/config"
	"gazette/internal/jobs"
	"gazette/internal/logger"
	"gazette/internal/logstore"
	"gazette/internal/recordstore"
)

// version is stamped at build time in a real release; left as a constant
// here since this module has no release pipeline of its own yet.
const version = "v0.1.0-dev"

// Server wires the job runner and record store to chi routes.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	store      recordstore.Store
	runner     *jobs.Runner
	logs       logstore.Store
	config     config.Server
	log        *slog.Logger
}

// New builds a Server ready to Start.
func New(store recordstore.Store, runner *jobs.Runner, logs logstore.Store, cfg config.Server) *Server {
	s := &Server{
		router: chi.NewRouter(),
		store:  store,
		runner: runner,
		logs:   logs,
		config: cfg,
		log:    logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(securityHeaders)

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/scrape", func(r chi.Router) {
		r.Post("/{source_kind}", s.handleSubmitJob)
		r.Get("/status/{job_id}", s.handleJobStatus)
		r.Get("/jobs", s.handleListJobs)
		r.Delete("/jobs", s.handleCleanupJobs)
	})

	s.router.Get("/{source}/records", s.handleListRecords)
	s.router.Get("/statistics", s.handleStatistics)
	s.router.Get("/comparison", s.handleComparison)

	s.router.Get("/logs", s.handleListLogs)
	s.router.Delete("/logs", s.handleDeleteLogs)
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the HTTP server. It does not
// wait for the job runner; callers own that lifecycle separately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
