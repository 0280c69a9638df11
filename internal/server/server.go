// Package server provides the HTTP API for movierec.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/movierec/internal/catalog"
	"github.com/hyperjump/movierec/internal/config"
	"github.com/hyperjump/movierec/internal/embedstore"
	"github.com/hyperjump/movierec/internal/generator"
	"github.com/hyperjump/movierec/internal/recommend"
	"github.com/hyperjump/movierec/internal/storage"
)

// requestTimeout bounds every route except batch generation.
const requestTimeout = 60 * time.Second

// Server is the HTTP server for the movierec API.
type Server struct {
	recommender *recommend.Service
	generator   *generator.Generator
	importer    *catalog.Importer
	store       *embedstore.Store
	storage     storage.Storage
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	rec *recommend.Service,
	gen *generator.Generator,
	imp *catalog.Importer,
	store *embedstore.Store,
	st storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		recommender: rec,
		generator:   gen,
		importer:    imp,
		store:       store,
		storage:     st,
		config:      cfg,
		logger:      logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// A full regeneration can outlast any fixed request timeout.
	r.Post("/api/v1/embeddings/generate", s.handleGenerate)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Post("/api/v1/recommend", s.handleRecommend)
		r.Get("/api/v1/movies", s.handleListMovies)
		r.Post("/api/v1/movies", s.handleUpsertMovie)
		r.Get("/api/v1/movies/{id}", s.handleGetMovie)
		r.Delete("/api/v1/movies/{id}", s.handleDeleteMovie)
		r.Get("/api/v1/movies/{id}/embedding", s.handleGetEmbedding)
		r.Post("/api/v1/movies/{id}/embedding", s.handleRegenerateEmbedding)
		r.Delete("/api/v1/movies/{id}/embedding", s.handleClearEmbedding)
		r.Get("/api/v1/status", s.handleStatus)
		r.Get("/health", s.handleHealth)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
