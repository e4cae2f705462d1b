// Package server exposes transfers, previews, uploads and progress polling
// over HTTP.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fbz-tec/chxport/core/config"
	"github.com/fbz-tec/chxport/core/ingest"
	"github.com/fbz-tec/chxport/core/progress"
	"github.com/fbz-tec/chxport/core/tasks"
	"github.com/fbz-tec/chxport/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MaxUploadSize caps multipart uploads.
const MaxUploadSize = 512 << 20

// Deps are the collaborators the HTTP layer dispatches to.
type Deps struct {
	Service  *ingest.Service
	Runner   *tasks.Runner
	Tracker  progress.Tracker
	Uploads  *UploadStore
	Defaults config.Connection
}

// Server is the HTTP front end.
type Server struct {
	deps   Deps
	router *chi.Mux

	mu     sync.Mutex
	server *http.Server
}

// NewServer builds the router with middleware and routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:   deps,
		router: chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tables", s.handleTables)
		r.Get("/columns", s.handleColumns)
		r.Post("/upload", s.handleUpload)
		r.Get("/file-headers", s.handleFileHeaders)

		r.Post("/preview/clickhouse", s.handlePreviewStore)
		r.Get("/preview/file", s.handlePreviewFile)

		r.Get("/progress/{id}", s.handleProgress)
		r.Get("/progress/{id}/detail", s.handleProgressDetail)
		r.Post("/tasks/{id}/cancel", s.handleCancel)

		r.Route("/ingest", func(r chi.Router) {
			r.Post("/clickhouse-to-file", s.handleExport)
			r.Post("/file-to-clickhouse", s.handleImport)
			r.Post("/join-tables", s.handleJoin)
		})
	})
}

// requestLogger writes one line per request through the console logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug("%s %s -> %d (%d bytes, %v) [%s]",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
			time.Since(start), middleware.GetReqID(r.Context()))
	})
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	logger.Info("Listening on %s", addr)
	return srv.ListenAndServe()
}

// Shutdown stops the listener and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Router returns the handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
