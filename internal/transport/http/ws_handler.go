package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pitchstats/internal/infrastructure"
	ws "pitchstats/internal/websocket"
)

// WebSocketHandler upgrades HTTP connections and hands them to the hub.
type WebSocketHandler struct {
	hub            *ws.Hub
	allowedOrigins []string
	development    bool
	logger         *slog.Logger
}

// NewWebSocketHandler creates a websocket upgrade handler. In development
// mode any origin is accepted; otherwise origins are checked against the
// allowed list.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, development bool, logger *slog.Logger) *WebSocketHandler {
	if hub == nil {
		panic("hub cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &WebSocketHandler{
		hub:            hub,
		allowedOrigins: allowedOrigins,
		development:    development,
		logger:         logger.With(slog.String("handler", "websocket")),
	}
}

// Handle handles GET /ws
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	traceID := infrastructure.GetTraceID(r.Context())
	if traceID == "" {
		traceID = r.Header.Get("X-Trace-ID")
	}
	if traceID == "" {
		traceID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}
	ctx := infrastructure.WithTraceID(r.Context(), traceID)

	h.logger.InfoContext(ctx, "websocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")),
		slog.String("trace_id", traceID))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.logger.ErrorContext(ctx, "websocket upgrade rejected",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.ErrorContext(ctx, "websocket upgrade failed",
			slog.String("error", err.Error()))
		h.hub.RecordConnectionError()
		if otelMetrics := ws.GetOTelMetrics(); otelMetrics != nil {
			otelMetrics.RecordConnectionError(ctx, "", "upgrade_failed", err)
		}
		return
	}

	client := ws.NewClientWithTrace(h.hub, conn, traceID, h.logger)
	h.hub.Register(client)

	h.logger.InfoContext(ctx, "websocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("trace_id", traceID))

	go client.WritePump()
	go client.ReadPump()
}

// checkOrigin validates the Origin header of an upgrade request.
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Same-origin requests and non-browser clients carry no Origin header.
	if origin == "" {
		return true
	}
	if h.development {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	h.logger.Warn("websocket origin not allowed",
		slog.String("origin", origin))
	return false
}
