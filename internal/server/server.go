// Package server provides the HTTP API for tutorly.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/tutorly/internal/auth"
	"github.com/hyperjump/tutorly/internal/config"
	"github.com/hyperjump/tutorly/internal/ingest"
	"github.com/hyperjump/tutorly/internal/models"
	"github.com/hyperjump/tutorly/internal/storage"
	"go.uber.org/zap"
)

// Asker answers chat requests for a user.
type Asker interface {
	Ask(ctx context.Context, userID string, req *models.ChatRequest) (*models.ChatResponse, error)
	Strategy() string
}

// ResourceService ingests and deletes a user's documents.
type ResourceService interface {
	Ingest(ctx context.Context, up *ingest.Upload) (*ingest.Result, error)
	DeleteResource(ctx context.Context, userID, id string) error
}

// Server is the HTTP server for the tutorly API.
type Server struct {
	pipeline  Asker
	resources ResourceService
	storage   storage.Storage
	auth      auth.Authenticator
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	pipeline Asker,
	resources ResourceService,
	storage storage.Storage,
	authn auth.Authenticator,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		pipeline:  pipeline,
		resources: resources,
		storage:   storage,
		auth:      authn,
		config:    cfg,
		logger:    logger,
	}
}

// Router returns the API handler with middleware applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if timeout := s.config.Server.RequestTimeout(); timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(s.auth, s.logger))
		r.Post("/chat", s.handleChat)
		r.Get("/resources", s.handleListResources)
		r.Post("/resources", s.handleUpload)
		r.Delete("/resources/{id}", s.handleDeleteResource)
		r.Get("/status", s.handleStatus)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("strategy", s.pipeline.Strategy()))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.String("remote", r.RemoteAddr),
					zap.Duration("took", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
