package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/tablemut/jobs"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/observability"
	"github.com/kbukum/tablemut/recipe"
	"github.com/kbukum/tablemut/server/endpoint"
	"github.com/kbukum/tablemut/server/middleware"
	"github.com/kbukum/tablemut/version"
)

// Server serves recipe runs over HTTP. Gin handles routing; the handler is
// wrapped with h2c so HTTP/2 clients work without TLS.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     Config
	log        *logger.Logger

	service  string
	registry *recipe.Registry
	runner   *recipe.Runner
	jobs     *jobs.Scheduler
	metrics  *observability.Metrics
	checkers []observability.HealthChecker
}

// Option configures a Server.
type Option func(*Server)

// WithServiceName sets the name reported by /health and /version.
func WithServiceName(name string) Option {
	return func(s *Server) { s.service = name }
}

// WithRunner sets the runner used by the transform route.
func WithRunner(r *recipe.Runner) Option {
	return func(s *Server) { s.runner = r }
}

// WithJobs exposes the jobs of sched under /v1/jobs.
func WithJobs(sched *jobs.Scheduler) Option {
	return func(s *Server) { s.jobs = sched }
}

// WithServerMetrics records request metrics.
func WithServerMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealthCheckers adds components to /health.
func WithHealthCheckers(checkers ...observability.HealthChecker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, checkers...) }
}

// New creates a Server serving the recipes in reg. cfg should have its
// defaults applied. Routes and middleware are registered immediately.
func New(cfg Config, reg *recipe.Registry, log *logger.Logger, opts ...Option) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:   gin.New(),
		config:   cfg,
		log:      log.WithComponent("server"),
		service:  "tablemut",
		registry: reg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = recipe.NewRunner(recipe.WithRunLogger(log), recipe.WithMetrics(s.metrics))
	}

	s.applyMiddleware()
	s.registerRoutes()

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          cfg.IdleTimeout,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      h2c.NewHandler(s.engine, h2s),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) applyMiddleware() {
	s.engine.Use(middleware.Recovery(s.log))
	s.engine.Use(middleware.RequestID())
	if n := s.config.MaxBodyBytes(); n > 0 {
		s.engine.Use(middleware.BodySizeLimit(n))
	}
	var rec middleware.RequestRecorder
	if s.metrics != nil {
		rec = s.metrics
	}
	s.engine.Use(middleware.RequestLogger(s.log, rec))
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", endpoint.Health(s.service, version.Version, s.checkers...))
	s.engine.GET("/version", endpoint.Version())

	h := &recipeHandler{registry: s.registry, runner: s.runner, log: s.log}
	v1 := s.engine.Group("/v1")
	v1.GET("/recipes", h.list)
	v1.POST("/recipes/:name/transform", h.transform)

	if s.jobs != nil {
		jh := &jobHandler{scheduler: s.jobs, log: s.log}
		v1.GET("/jobs", jh.list)
		v1.GET("/jobs/:name", jh.get)
		v1.POST("/jobs/:name/run", jh.run)
	}
}

// Start binds the port and serves in a goroutine. It returns once the
// listener is bound.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("Starting HTTP server", logger.Fields("addr", s.httpServer.Addr))

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("Server error", logger.ErrorFields("serve", err))
		}
	}()

	s.log.Info("HTTP server started", logger.Fields("addr", listener.Addr().String(), "recipes", s.registry.Len()))
	return nil
}

// Stop gracefully shuts down the server with a 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server shutdown error", logger.ErrorFields("shutdown", err))
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.log.Info("HTTP server shut down successfully")
	return nil
}

// Run starts the server and blocks until ctx is done, then stops it.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop(context.WithoutCancel(ctx))
}
