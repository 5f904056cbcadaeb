// Package server provides the HTTP API for document upload and question answering.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/ragdoc/internal/config"
	"github.com/hyperjump/ragdoc/internal/keyword"
	"github.com/hyperjump/ragdoc/internal/models"
)

// Answerer answers questions from indexed documents.
type Answerer interface {
	Answer(ctx context.Context, question string) (*models.AnswerResult, error)
}

// Ingester ingests an uploaded file stored at path under its original filename.
type Ingester interface {
	IngestFile(ctx context.Context, path, filename string) (*models.IngestResult, error)
}

// ChunkStore exposes read access to stored chunks.
type ChunkStore interface {
	Get(id int64) (models.Chunk, bool)
	Count() int
	IndexType() string
	Dimensions() int
}

// UploadLister pages through the upload ledger.
type UploadLister interface {
	ListUploads(ctx context.Context, offset, limit int) ([]*models.Upload, error)
	CountUploads(ctx context.Context) (int64, error)
}

// KeywordSearcher looks chunks up by exact terms.
type KeywordSearcher interface {
	Search(ctx context.Context, query string, limit int, opts *keyword.SearchOptions) ([]keyword.Result, error)
	Suggest(query string) (string, bool)
	DocCount() (uint64, error)
}

// Server is the HTTP server for the ragdoc API.
type Server struct {
	engine    Answerer
	ingester  Ingester
	store     ChunkStore
	uploads   UploadLister
	keyword   KeywordSearcher
	watchDirs func() []string
	config    *config.Config
	limiter   *rateLimiter
	logger    *zap.Logger
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithUploads enables the upload ledger endpoints.
func WithUploads(u UploadLister) Option {
	return func(s *Server) { s.uploads = u }
}

// WithKeyword enables the chunk keyword search endpoint.
func WithKeyword(k KeywordSearcher) Option {
	return func(s *Server) { s.keyword = k }
}

// WithWatchDirectories reports inbox directories in the status endpoint.
func WithWatchDirectories(fn func() []string) Option {
	return func(s *Server) { s.watchDirs = fn }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine Answerer,
	ingester Ingester,
	store ChunkStore,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:   engine,
		ingester: ingester,
		store:    store,
		config:   cfg,
		limiter:  newRateLimiter(cfg.Server.RateLimitPerHour, cfg.Server.RateLimitBurst),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware(s.respondError))
		}
		r.Post("/api/v1/upload", s.handleUpload)
		r.Post("/api/upload/", s.handleUpload)
		r.Post("/api/v1/query", s.handleQuery)
		r.Post("/api/query/", s.handleQuery)
	})

	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/uploads", s.handleListUploads)
	r.Get("/api/v1/chunks/search", s.handleChunkSearch)
	r.Get("/api/v1/chunks/{id}", s.handleGetChunk)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.ListenAddr()
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
