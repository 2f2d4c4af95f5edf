package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/metrics"
)

type blockIngester interface {
	Accept(ctx context.Context, raw []byte)
}

// Server is one echo listener. The relay runs two: the ingest API and the subscriber endpoint.
type Server struct {
	echo *echo.Echo
	name string
	port string

	ingest       blockIngester
	healthChecks []HealthCheck
	startTime    time.Time
}

// NewIngestServer serves the block ingest API, health probes, version and metrics.
// httpMetrics and metricsHandler may be nil.
func NewIngestServer(port string, ingest blockIngester, healthChecks []HealthCheck, httpMetrics *metrics.HTTPMetrics, metricsHandler http.Handler) *Server {
	srv := &Server{
		echo:         newEcho(httpMetrics),
		name:         "ingest",
		port:         port,
		ingest:       ingest,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}
	srv.registerIngestRoutes(metricsHandler)
	return srv
}

// NewSubscriberServer upgrades every path to a subscriber WebSocket using wsHandler.
func NewSubscriberServer(port string, wsHandler echo.HandlerFunc) *Server {
	srv := &Server{
		echo:      newEcho(nil),
		name:      "websocket",
		port:      port,
		startTime: time.Now(),
	}
	srv.registerSubscriberRoutes(wsHandler)
	return srv
}

// Start blocks until the server stops. A clean shutdown returns nil.
func (s *Server) Start() error {
	slog.Info("Starting server", "server", s.name, "port", s.port)
	if err := s.echo.Start(":" + s.port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start %s server: %w", s.name, err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown %s server: %w", s.name, err)
	}
	return nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}
