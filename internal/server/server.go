// Package server exposes the pipeline over HTTP.
//
// Routes:
//
//	POST /lists                   store a dependency list, returns {"id", "url"}
//	GET  /lists/{token}           evaluated report for a stored list
//	GET  /p/{registry}/{name...}  annotated history of one package
//	GET  /healthz                 liveness and upstream circuit breaker states
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/depreview/depreview/pkg/pipeline"
)

const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 2 * time.Minute
)

// Options holds the dependencies of the HTTP handlers.
type Options struct {
	Runner *pipeline.Runner
	Logger *log.Logger

	// Breakers reports upstream circuit breaker states by host. Optional.
	Breakers func() map[string]string
}

// Server wraps an http.Server serving the depreview API.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
}

// New creates a server listening on addr.
func New(addr string, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(opts),
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      writeTimeout,
		},
		logger: opts.Logger,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	h := &handlers{runner: opts.Runner, logger: opts.Logger, breakers: opts.Breakers}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Post("/lists", h.upload)
	r.Get("/lists/{token}", h.report)
	r.Get("/p/{registry}/*", h.pkg)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
	return r
}
