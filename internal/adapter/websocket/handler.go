package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/oslocurrency/oslocrawler-ws/internal/adapter/metrics"
	"github.com/oslocurrency/oslocrawler-ws/internal/broadcast"
	"github.com/oslocurrency/oslocrawler-ws/internal/domain"
	"github.com/oslocurrency/oslocrawler-ws/internal/platform/correlation"
)

const maxFrameSize = 64 * 1024

// Handler upgrades subscriber connections and runs their read loops.
type Handler struct {
	registry  *broadcast.Registry
	clock     clockwork.Clock
	limits    *ConnectionLimits
	wsMetrics *metrics.WebSocketMetrics
	upgrader  websocket.Upgrader
}

// NewHandler builds a Handler. limits and wsMetrics may be nil.
func NewHandler(registry *broadcast.Registry, clock clockwork.Clock, limits *ConnectionLimits, checkOrigin func(*http.Request) bool, wsMetrics *metrics.WebSocketMetrics) *Handler {
	return &Handler{
		registry:  registry,
		clock:     clock,
		limits:    limits,
		wsMetrics: wsMetrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Handle serves one subscriber until its connection ends. Any path is accepted.
func (h *Handler) Handle(c echo.Context) error {
	ip := c.RealIP()

	if h.limits != nil {
		ok, reason := h.limits.Acquire(ip)
		if !ok {
			if h.wsMetrics != nil {
				h.wsMetrics.RejectedConnections.WithLabelValues(string(reason)).Inc()
			}
			slog.Warn("WebSocket connection rejected", "remote_ip", ip, "reason", reason)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "connection limit exceeded"})
		}
		defer h.limits.Release()
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote an HTTP error response
		slog.Debug("Failed to upgrade WebSocket", "remote_ip", ip, "error", err)
		return nil
	}
	conn.SetReadLimit(maxFrameSize)

	writer := newConnWriter(conn, h.clock, h.wsMetrics)
	session := broadcast.NewSession(h.registry, writer)

	if h.wsMetrics != nil {
		h.wsMetrics.ActiveConnections.Inc()
		defer h.wsMetrics.ActiveConnections.Dec()
	}

	ctx := correlation.WithID(context.Background(), session.ID().String())
	slog.DebugContext(ctx, "New connection", "remote_ip", ip, "sessions", h.registry.SessionCount())

	h.readLoop(ctx, conn, session)

	session.Close()
	writer.stop()
	return nil
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, session *broadcast.Session) {
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "WebSocket read ended", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			h.countIgnored("binary_frame")
			continue
		}

		if err := session.HandleMessage(ctx, raw); err != nil {
			switch {
			case errors.Is(err, domain.ErrUnknownEvent):
				h.countIgnored("unknown_event")
			case errors.Is(err, domain.ErrMalformedFrame):
				h.countIgnored("malformed")
			case errors.Is(err, domain.ErrSessionClosed):
				return
			}
		}
	}
}

func (h *Handler) countIgnored(reason string) {
	if h.wsMetrics != nil {
		h.wsMetrics.FramesIgnored.WithLabelValues(reason).Inc()
	}
}
