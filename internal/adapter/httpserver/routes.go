package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/metrics"
)

const maxBlockBodySize = "1M"

func newEcho(httpMetrics *metrics.HTTPMetrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(correlationMiddleware)
	e.Use(setupRequestLoggerMiddleware())
	e.Use(middleware.Recover())
	e.Use(ErrorHandlingMiddleware())
	if httpMetrics != nil {
		e.Use(httpMetrics.Middleware())
	}
	return e
}

func (s *Server) registerIngestRoutes(metricsHandler http.Handler) {
	s.echo.POST("/api/new-block", s.handleNewBlock, middleware.BodyLimit(maxBlockBodySize))
	s.echo.GET("/health-check", s.handleHealthCheck)

	s.registerHealthRoutes()

	if metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
	}
}

func (s *Server) registerSubscriberRoutes(wsHandler echo.HandlerFunc) {
	s.echo.GET("/*", wsHandler)
}

func setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		Skipper: func(c echo.Context) bool {
			// the crawler posts every block; per-request lines would drown the log
			return c.Path() == "/api/new-block" || c.Path() == "/health-check"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
