// Package server is the HTTP surface of the detection service: ingest,
// manual runs, the pattern/action read API, and the clustering contract
// other instances can call remotely.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/failsift/failsift/internal/cluster"
	"github.com/failsift/failsift/internal/core/ports"
	"github.com/failsift/failsift/internal/domain"
	"github.com/failsift/failsift/internal/features"
	"github.com/failsift/failsift/internal/logging"
)

// Runtime is the slice of the detection runtime the HTTP surface needs.
type Runtime interface {
	// Ingest normalizes and stores a payload batch, returning stored ids.
	Ingest(ctx context.Context, sourceType string, payloads []map[string]any) ([]string, error)

	// Run executes one synchronous detection run.
	Run(ctx context.Context) (domain.DetectionReport, error)

	// State reports the detector's current phase.
	State() string

	// LastRun returns the most recent run report, if any run has finished.
	LastRun() (domain.DetectionReport, bool)
}

// Options configures a Server. Runtime, Failures, and Actions are required
// for their routes; Extractor and Clusterer enable the /cluster endpoint.
type Options struct {
	Runtime   Runtime
	Failures  ports.FailureStore
	Actions   ports.ActionStore
	Extractor *features.Extractor
	Clusterer *cluster.DBSCAN
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Server routes HTTP requests to the detection runtime and stores.
type Server struct {
	router    *chi.Mux
	runtime   Runtime
	failures  ports.FailureStore
	actions   ports.ActionStore
	extractor *features.Extractor
	clusterer *cluster.DBSCAN
	logger    *slog.Logger
}

// New creates a Server with its routes and middleware chain configured.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New("server")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Server{
		router:    chi.NewRouter(),
		runtime:   opts.Runtime,
		failures:  opts.Failures,
		actions:   opts.Actions,
		extractor: opts.Extractor,
		clusterer: opts.Clusterer,
		logger:    logger,
	}
	s.routes(timeout)
	return s
}

func (s *Server) routes(timeout time.Duration) {
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(TimeoutMiddleware(timeout))
	s.router.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	s.router.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "failsift")
	})

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/failures/{source}", s.handleIngest)
		r.Post("/detect/run", s.handleDetectRun)
		r.Post("/cluster", s.handleCluster)
		r.Get("/patterns", s.handleListPatterns)
		r.Get("/pattern/{id}", s.handlePatternDetail)
		r.Get("/actions", s.handleListActions)
		r.Get("/stats", s.handleStats)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
