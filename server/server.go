// Package server exposes the engine over HTTP with gin.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poiesic/vectra"
	"github.com/poiesic/vectra/core"
	"github.com/poiesic/vectra/ingestion"
)

// Service is what the HTTP layer needs from the engine.
type Service interface {
	Query(ctx context.Context, req core.QueryRequest) (*core.HybridQueryResult, error)
	Submit(ctx context.Context, doc core.Document) (string, error)
	TaskStatus(taskID string) (ingestion.TaskStatus, error)
	Health(ctx context.Context) vectra.HealthReport
	Ready(ctx context.Context) error
}

var _ Service = (*vectra.Engine)(nil)

// ErrServiceRequired is returned when no service is provided.
var ErrServiceRequired = errors.New("service required")

const shutdownTimeout = 10 * time.Second

// Server routes HTTP requests to a Service.
type Server struct {
	service  Service
	router   *gin.Engine
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithGatherer serves metrics from g on /metrics.
// Default is prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) error {
		if g == nil {
			return errors.New("gatherer cannot be nil")
		}
		s.gatherer = g
		return nil
	}
}

// New creates a server and registers its routes.
func New(service Service, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, ErrServiceRequired
	}
	s := &Server{
		service:  service,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "http")

	s.router = gin.New()
	s.router.Use(requestID(), requestLogger(s.logger), recovery(s.logger))
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/", s.root)

	health := s.router.Group("/health")
	{
		health.GET("", s.health)
		health.GET("/liveness", s.liveness)
		health.GET("/readiness", s.readiness)
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/query", s.query)
		v1.GET("/query/test", s.queryTest)
		v1.POST("/ingest/document", s.ingestDocument)
		v1.GET("/ingest/task/:task_id", s.taskStatus)
	}

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":   "vectra",
		"status": "running",
		"docs":   "/api/v1",
	})
}
