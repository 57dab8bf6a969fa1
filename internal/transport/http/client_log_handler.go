package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "pitchstats/internal/errors"
	"pitchstats/internal/middleware"
)

// clientLogLevels maps the levels the dashboard sends to slog levels.
// Anything unrecognized logs at info.
var clientLogLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ClientLogHandler receives log entries from the dashboard frontend and
// forwards them into the server's structured log, so browser-side failures
// show up next to the server events they relate to.
type ClientLogHandler struct {
	logger *slog.Logger
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(logger *slog.Logger) *ClientLogHandler {
	return &ClientLogHandler{
		logger: logger.With(slog.String("handler", "client_log")),
	}
}

// LogRequest represents a client log entry
type LogRequest struct {
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Source  string                 `json:"source,omitempty"`
}

// Handle processes POST /api/logs requests.
func (h *ClientLogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req LogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteError(w, apierrors.NewValidationError("Invalid request format"))
		return
	}
	if req.Message == "" {
		apierrors.WriteError(w, apierrors.NewValidationError("Log message is required"))
		return
	}

	if req.Source == "" {
		req.Source = "dashboard"
	}

	level, ok := clientLogLevels[req.Level]
	if !ok {
		level = slog.LevelInfo
	}

	attrs := []slog.Attr{
		slog.String("client_source", req.Source),
		slog.String("client_level", req.Level),
	}
	if req.Data != nil {
		attrs = append(attrs, slog.Any("data", req.Data))
	}

	h.logger.LogAttrs(r.Context(), level, req.Message, attrs...)

	// Frontend errors count against the system error series so a broken
	// dashboard is visible on the same graphs as server faults.
	if level == slog.LevelError {
		middleware.RecordSystemError(r.Context(), "client_error", req.Source)
	}

	render.JSON(w, r, map[string]interface{}{"success": true})
}
