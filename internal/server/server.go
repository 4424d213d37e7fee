// Package server is the HTTP API: a streaming run endpoint, registry and
// partner lookups, A2A agent endpoints, and the run archive.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dusk-indust/procure/internal/agent"
	"github.com/dusk-indust/procure/internal/archive"
	"github.com/dusk-indust/procure/internal/generator"
	"github.com/dusk-indust/procure/internal/orchestrator"
)

// Server serves the API. Create it with New.
type Server struct {
	echo     *echo.Echo
	pipeline *orchestrator.Pipeline
	agents   *agent.Registry
	archive  *archive.Archive
	gen      generator.Generator
	baseURL  string
	logger   *slog.Logger

	cancelOnDisconnect bool
}

// Option configures a Server.
type Option func(*Server)

// WithArchive records every run and enables the /api/runs routes.
func WithArchive(a *archive.Archive) Option {
	return func(s *Server) { s.archive = a }
}

// WithAgents sets the agent registry. The default is agent.Default().
func WithAgents(r *agent.Registry) Option {
	return func(s *Server) { s.agents = r }
}

// WithAgentGenerator serves every registered agent over A2A at its
// endpoint, answering with g.
func WithAgentGenerator(g generator.Generator) Option {
	return func(s *Server) { s.gen = g }
}

// WithBaseURL sets the public URL used in agent cards.
func WithBaseURL(u string) Option {
	return func(s *Server) { s.baseURL = u }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithCancelOnDisconnect stops a streamed run when its client goes away.
func WithCancelOnDisconnect(v bool) Option {
	return func(s *Server) { s.cancelOnDisconnect = v }
}

// New creates a Server that plans runs with p.
func New(p *orchestrator.Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline: p,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.agents == nil {
		s.agents = agent.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(s.requestLogger())
	s.echo = e
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/api/health", s.health)
	e.GET("/api/registry", s.listAgents)
	e.GET("/api/registry/:id", s.getAgent)
	e.GET("/.well-known/agent-card.json", s.agentCard)
	e.GET("/api/partners/:kind", s.listPartners)
	e.POST("/api/partners/:kind/select", s.selectPartners)
	e.POST("/api/run", s.run)

	runs := e.Group("/api/runs", s.requireArchive)
	runs.GET("", s.listRuns)
	runs.GET("/:id", s.getRun)
	runs.GET("/:id/events", s.runEvents)
	runs.GET("/:id/status", s.runStatus)
	runs.GET("/:id/diagram", s.runDiagram)

	if s.gen != nil {
		for endpoint, h := range s.agents.Handlers(s.gen, s.baseURL) {
			e.Any(endpoint, echo.WrapHandler(h))
			e.GET(endpoint+"/.well-known/agent-card.json", echo.WrapHandler(h))
		}
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("http api listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for open streams up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			s.logger.Info("http request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"duration", time.Since(start),
				"remote", c.RealIP())
			return nil
		}
	}
}

func (s *Server) requireArchive(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.archive == nil {
			return c.JSON(http.StatusNotFound, errorBody("Run archive is disabled"))
		}
		return next(c)
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
