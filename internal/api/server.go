// Package api is the HTTP surface of serve mode.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/reelrank/reelrank/internal/api/handlers"
	"github.com/reelrank/reelrank/internal/config"
	"github.com/reelrank/reelrank/internal/health"
	"github.com/reelrank/reelrank/internal/history"
	"github.com/reelrank/reelrank/internal/recommend"
	"github.com/reelrank/reelrank/internal/scheduler"
)

// Deps are the services the server exposes. Only Recommend is required.
type Deps struct {
	Recommend *recommend.Service
	History   *history.Service
	Scheduler *scheduler.Scheduler
	Health    *health.Service
	DB        *sql.DB
}

// Server handles HTTP requests for the reelrank API.
type Server struct {
	echo      *echo.Echo
	cfg       *config.Config
	deps      Deps
	logger    zerolog.Logger
	startedAt time.Time
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		cfg:       cfg,
		deps:      deps,
		logger:    logger.With().Str("component", "api").Logger(),
		startedAt: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := s.logger.Debug()
			if v.Error != nil {
				ev = s.logger.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)

	recs := api.Group("/recommendations")
	recs.GET("", s.getRecommendations)
	recs.POST("/run", s.runRecommendations)

	api.POST("/feedback", s.postFeedback)
	api.POST("/seen/rebuild", s.rebuildSeen)

	if s.deps.History != nil {
		history.NewHandlers(s.deps.History).RegisterRoutes(api.Group("/history"))
	}
	if s.deps.Health != nil {
		health.NewHandlers(s.deps.Health, health.Checks(s.cfg), s.deps.DB).RegisterRoutes(api.Group("/health"))
	}
	if s.deps.Scheduler != nil {
		handlers.NewSchedulerHandler(s.deps.Scheduler).RegisterRoutes(api.Group("/scheduler"))
	}
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("Starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
