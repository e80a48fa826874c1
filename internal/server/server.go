// Package server provides the HTTP API for kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/session"
	"go.uber.org/zap"
)

// WatchService manages watched directories. watcher.Watcher satisfies it.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the kotae API.
type Server struct {
	session    *session.Session
	config     *config.Config
	logger     *zap.Logger
	watch      WatchService
	configPath string
	configMu   sync.Mutex
	server     *http.Server
}

// NewServer creates a server. watch may be nil when no directories are watched; configPath,
// when set, is where watch directory changes are persisted.
func NewServer(sess *session.Session, logger *zap.Logger, watch WatchService, configPath string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		session:    sess,
		config:     sess.Config(),
		logger:     logger,
		watch:      watch,
		configPath: configPath,
	}
}

// Router returns the API routes with middleware applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/documents", s.handleUpload)
		r.Get("/documents", s.handleListDocuments)
		r.Delete("/documents", s.handleReset)
		r.Post("/ask", s.handleAsk)
		r.Post("/search", s.handleSearch)
		r.Get("/history", s.handleHistory)
		r.Get("/status", s.handleStatus)
		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
