// Package server provides the HTTP API for Seiri.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/seiri/internal/config"
	"github.com/hyperjump/seiri/internal/embedding"
	"github.com/hyperjump/seiri/internal/refine"
	"github.com/hyperjump/seiri/internal/storage"
	"go.uber.org/zap"
)

// Server is the HTTP server for the Seiri API.
type Server struct {
	refiner  *refine.Refiner
	embedder embedding.Embedder
	storage  storage.Storage
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	// editMu serializes read-modify-write of stored refinements.
	editMu sync.Mutex
}

// NewServer creates a server with the given dependencies.
// The embedder is only used for status reporting; refinements go through refiner.
func NewServer(
	refiner *refine.Refiner,
	embedder embedding.Embedder,
	storage storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		refiner:  refiner,
		embedder: embedder,
		storage:  storage,
		config:   cfg,
		logger:   logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/datasets", s.handleUploadDataset)
		r.Get("/datasets", s.handleListDatasets)
		r.Route("/datasets/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetDataset)
			r.Delete("/", s.handleDeleteDataset)
			r.Get("/columns/{column}", s.handleGetColumn)
			r.Post("/refine", s.handleRefine)
			r.Get("/refinements", s.handleListRefinements)
			r.Get("/refinements/{column}", s.handleGetRefinement)
			r.Patch("/refinements/{column}/rows/{row}", s.handleEditRow)
			r.Post("/refinements/{column}/rename", s.handleRename)
			r.Get("/refinements/{column}/export", s.handleExport)
		})
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
