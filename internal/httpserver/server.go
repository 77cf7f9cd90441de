// Package httpserver hosts the echo server: the /ws streaming endpoint,
// health, track listing, and Prometheus metrics.
package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matiaszanolli/auralis-go/internal/conf"
	"github.com/matiaszanolli/auralis-go/internal/library"
	"github.com/matiaszanolli/auralis-go/internal/logging"
	"github.com/matiaszanolli/auralis-go/internal/observability"
	"github.com/matiaszanolli/auralis-go/internal/predictor"
	"github.com/matiaszanolli/auralis-go/internal/streaming"
)

// Server wires the HTTP surface around the streaming controller.
type Server struct {
	echo     *echo.Echo
	settings *conf.Settings
	ctrl     *streaming.Controller
	store    *library.Store
	metrics  *observability.Metrics
	predict  *predictor.Recorder // fed with observed preset switches, may be nil
	log      *slog.Logger
}

// New builds the server and its routes.
func New(settings *conf.Settings, ctrl *streaming.Controller, store *library.Store, predict *predictor.Recorder, metrics *observability.Metrics) *Server {
	log := logging.ForService("httpserver")
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		settings: settings,
		ctrl:     ctrl,
		store:    store,
		metrics:  metrics,
		predict:  predict,
		log:      log.With("component", "http_server"),
	}

	e.GET("/healthz", s.handleHealth)
	e.GET("/api/tracks", s.handleTracks)
	e.GET("/api/stats", s.handleStats)
	e.GET("/ws", s.handleWebSocket)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
			metrics.Registry(), promhttp.HandlerOpts{})))
	}

	return s
}

// Start listens on the configured bind address and blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info("http server listening", "address", s.settings.Streaming.BindAddress)
	err := s.echo.Start(s.settings.Streaming.BindAddress)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"active_streams": s.ctrl.ActiveCount(),
		"time":           time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"active_streams": s.ctrl.ActiveCount(),
		"cache":          s.ctrl.CacheStats(),
	})
}

func (s *Server) handleTracks(c echo.Context) error {
	tracks, err := s.store.ListTracks()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "library unavailable"})
	}
	type trackDTO struct {
		ID        int64   `json:"id"`
		Title     string  `json:"title"`
		DurationS float64 `json:"duration_s"`
	}
	out := make([]trackDTO, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, trackDTO{ID: t.ID, Title: t.Title, DurationS: t.DurationS})
	}
	return c.JSON(http.StatusOK, out)
}
