// Package server provides the HTTP API for the FAQ assistant.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/faqrag/internal/config"
	"github.com/hyperjump/faqrag/internal/rag"
	"github.com/hyperjump/faqrag/internal/search"
	"github.com/hyperjump/faqrag/internal/storage"
	"go.uber.org/zap"
)

// Server is the HTTP server for the answer API.
type Server struct {
	service *rag.Service
	engine  *search.Engine
	dialogs storage.DialogLog
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. dialogs may be nil.
func NewServer(
	service *rag.Service,
	engine *search.Engine,
	dialogs storage.DialogLog,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		service: service,
		engine:  engine,
		dialogs: dialogs,
		config:  cfg,
		logger:  logger,
	}
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/dialogs", s.handleDialogs)
		r.Group(func(r chi.Router) {
			// Each query holds an embedding call and possibly a model call.
			r.Use(middleware.Throttle(s.config.Server.MaxConcurrent))
			r.Post("/answer", s.handleAnswer)
			r.Post("/retrieve", s.handleRetrieve)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
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
