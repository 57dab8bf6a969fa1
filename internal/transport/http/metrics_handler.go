package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"pitchstats/internal/infrastructure"
	ws "pitchstats/internal/websocket"
)

// MetricsHandler serves JSON metric snapshots for the dashboard. The
// Prometheus scrape endpoint lives at /metrics; these routes expose the
// same runtime and hub counters in a form the frontend renders directly.
type MetricsHandler struct {
	hub       *ws.Hub
	system    *infrastructure.SystemMetrics
	startTime time.Time
	logger    *slog.Logger
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(hub *ws.Hub, system *infrastructure.SystemMetrics, logger *slog.Logger) *MetricsHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &MetricsHandler{
		hub:       hub,
		system:    system,
		startTime: time.Now(),
		logger:    logger.With(slog.String("handler", "metrics")),
	}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/system", h.GetSystemMetrics)
	r.Get("/websocket", h.GetWebSocketMetrics)
	return r
}

// GetSystemMetrics handles GET /api/metrics/system
func (h *MetricsHandler) GetSystemMetrics(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]interface{}{
			"error": "system metrics not initialized",
		})
		return
	}

	render.JSON(w, r, h.system.Collect(r.Context(), h.startTime))
}

// GetWebSocketMetrics handles GET /api/metrics/websocket
func (h *MetricsHandler) GetWebSocketMetrics(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]interface{}{
			"error": "websocket hub not initialized",
		})
		return
	}

	out := h.hub.GetHubMetrics()
	out["rolling"] = ws.GetMetrics().GetSnapshot()
	render.JSON(w, r, out)
}
