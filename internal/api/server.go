package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/towatch/internal/api/handlers"
	"github.com/amaumene/towatch/internal/api/middleware"
	"github.com/amaumene/towatch/internal/auth"
	"github.com/amaumene/towatch/internal/controllers"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	server      *http.Server
	toWatchCtrl *controllers.ToWatchController
	catalogCtrl *controllers.CatalogController
	upstream    handlers.CatalogUpstream
	sessions    *auth.Manager
	backend     string
	logger      *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	port string,
	toWatchCtrl *controllers.ToWatchController,
	catalogCtrl *controllers.CatalogController,
	upstream handlers.CatalogUpstream,
	sessions *auth.Manager,
	backend string,
	logger *logrus.Logger,
) *Server {
	s := &Server{
		toWatchCtrl: toWatchCtrl,
		catalogCtrl: catalogCtrl,
		upstream:    upstream,
		sessions:    sessions,
		backend:     backend,
		logger:      logger,
	}

	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Routes builds the HTTP router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(s.sessions.Middleware)

	// Health check
	r.Get("/health", handlers.Health)

	// Status endpoint
	r.Get("/status", handlers.NewStatusHandler(s.backend, s.catalogCtrl, s.upstream, s.logger).ServeHTTP)

	r.Handle("/metrics", promhttp.Handler())

	// To-watch list
	toWatch := handlers.NewToWatchHandler(s.toWatchCtrl, s.logger)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/to-watch-items", toWatch.List)
		r.Post("/to-watch-items", toWatch.Create)
		r.Delete("/to-watch-items", toWatch.Delete)
	})

	// Session handoff
	session := handlers.NewSessionHandler(s.sessions, s.logger)
	r.Post("/api/auth/session", session.Create)
	r.Get("/api/auth/session", session.Get)
	r.Post("/api/auth/signout", session.SignOut)

	// Catalog
	catalog := handlers.NewCatalogHandler(s.catalogCtrl, s.logger)
	r.Get("/api/tmdb", catalog.Lists)
	r.Get("/api/tmdb/recommendations/{type}/{id}", catalog.Recommendations)
	r.With(auth.RequireAuth).Get("/api/dashboard", catalog.Dashboard)

	return r
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
