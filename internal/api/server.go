// Package api exposes the HTTP surface of the service.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hamsat/skytrack/internal/auth"
	"github.com/hamsat/skytrack/internal/catalog"
	"github.com/hamsat/skytrack/internal/elements"
	"github.com/hamsat/skytrack/internal/health"
	"github.com/hamsat/skytrack/internal/metrics"
	"github.com/hamsat/skytrack/internal/sky"
	"github.com/hamsat/skytrack/internal/stream"
	"github.com/hamsat/skytrack/internal/transform"
)

// RefreshFunc fetches, parses and installs a fresh element dataset.
type RefreshFunc func(ctx context.Context) (*elements.Dataset, error)

// Deps are the collaborators the HTTP handlers serve from.
type Deps struct {
	Store    *elements.Store
	Catalog  *catalog.Store
	SkyCache *sky.SnapshotCache
	Computer *sky.Computer
	Stream   *stream.Handler
	Refresh  RefreshFunc
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	observer   transform.ObserverPosition
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. observer is the station used
// when a request does not carry its own coordinates.
func NewServer(addr string, observer transform.ObserverPosition, deps Deps, authCfg auth.Config, logger *slog.Logger) *Server {
	s := &Server{
		observer: observer,
		deps:     deps,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Store))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/passes", s.handlePasses)
	mux.HandleFunc("GET /api/v1/sky", s.handleSky)
	mux.HandleFunc("GET /api/v1/sky/stats", s.handleSkyStats)
	mux.HandleFunc("GET /api/v1/satellites", s.handleSatellites)
	mux.HandleFunc("POST /api/v1/tle/refresh", s.handleRefresh)
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/sky", deps.Stream.HandleSky)
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
