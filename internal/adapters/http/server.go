// Package http provides the HTTP server, the render sink and the handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/clustermap/internal/application"
	"github.com/jobrunner/clustermap/internal/config"
	"github.com/jobrunner/clustermap/internal/ports/input"
)

// MetricsExporter exposes metrics over HTTP and instruments requests.
type MetricsExporter interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

// Services bundles what the handlers serve. Sync and Metrics are optional.
type Services struct {
	Clusters    input.ClusterService
	Viewport    input.Viewport
	Registry    input.DatasetRegistry
	Health      input.HealthChecker
	Sync        *application.SyncService
	Sink        *Sink
	Metrics     MetricsExporter
	MetricsPath string
}

// Server wraps the HTTP server with application handlers.
type Server struct {
	server *http.Server
	router *mux.Router
	svc    Services
	logger  *slog.Logger
	config  config.ServerConfig
	origins originPolicy
}

// NewServer creates a new HTTP server.
func NewServer(cfg config.ServerConfig, svc Services, logger *slog.Logger) *Server {
	if svc.Sink == nil {
		svc.Sink = NewSink()
	}
	if svc.MetricsPath == "" {
		svc.MetricsPath = "/metrics"
	}

	s := &Server{
		svc:     svc,
		logger:  logger,
		config:  cfg,
		origins: newOriginPolicy(cfg.CORS.AllowedOrigins),
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.svc.Metrics != nil {
		r.Use(s.svc.Metrics.Middleware)
	}
	if s.config.CORS.Enabled() {
		r.Use(s.corsMiddleware)
	}

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/clusters", s.handleClusters).Methods(http.MethodGet)
	api.HandleFunc("/clusters/{clusterId:[0-9]+}/children", s.handleClusterChildren).Methods(http.MethodGet)
	api.HandleFunc("/clusters/{clusterId:[0-9]+}/leaves", s.handleClusterLeaves).Methods(http.MethodGet)
	api.HandleFunc("/clusters/{clusterId:[0-9]+}/expansion-zoom", s.handleExpansionZoom).Methods(http.MethodGet)

	if s.svc.Viewport != nil {
		api.HandleFunc("/viewport/ready", s.handleViewportReady).Methods(http.MethodPost, http.MethodOptions)
		api.HandleFunc("/viewport/region", s.handleViewportRegion).Methods(http.MethodPost, http.MethodOptions)
		api.HandleFunc("/viewport/items", s.handleViewportItems).Methods(http.MethodGet)
		api.HandleFunc("/viewport/items/{key}/click", s.handleViewportClick).Methods(http.MethodPost, http.MethodOptions)
	}

	api.HandleFunc("/datasets", s.handleListDatasets).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{datasetId}", s.handleGetDataset).Methods(http.MethodGet)

	if s.svc.Sync != nil {
		api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost, http.MethodOptions)
	}

	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.handleSwaggerUI).Methods(http.MethodGet)

	if s.svc.Metrics != nil {
		r.Handle(s.svc.MetricsPath, s.svc.Metrics.Handler()).Methods(http.MethodGet)
	}

	if s.config.FrontendEnabled && s.svc.Viewport != nil {
		r.HandleFunc("/", s.handleFrontend).Methods(http.MethodGet)
	}

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware recovers from panics.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
