package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "pitchstats/internal/errors"
	"pitchstats/internal/infrastructure"
	"pitchstats/internal/middleware"
	"pitchstats/internal/services"
	api "pitchstats/pkg/contracts/api/v1"
)

// RunHandler handles run lifecycle HTTP requests
type RunHandler struct {
	service      RunServiceInterface
	validate     *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewRunHandler creates a new run handler
func NewRunHandler(service RunServiceInterface, validate *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *RunHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RunHandler{
		service:      service,
		validate:     validate,
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("handler", "runs")),
		errorHandler: errorHandler,
	}
}

// Routes returns a chi router for run endpoints
func (h *RunHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.StartRun)
	r.Get("/", h.ListRuns)
	r.Get("/{id}", h.GetRun)
	r.Delete("/{id}", h.StopRun)

	return r
}

// StartRun handles POST /api/runs
func (h *RunHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("run-handler")

	ctx, span := tracer.Start(ctx, "run_handler.start_run",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	var req api.RunStartRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		span.RecordError(err)
		h.errorHandler.HandleError(w, r.WithContext(ctx), apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validate.ValidateStruct(&req); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "request_validation"))
		h.errorHandler.HandleError(w, r.WithContext(ctx), err)
		return
	}

	span.SetAttributes(
		attribute.String("run.study", req.Study),
		attribute.Bool("run.fail_fast", req.FailFast),
		attribute.Bool("run.with_narratives", req.WithNarratives),
	)

	h.logger.InfoContext(ctx, "run start request",
		slog.String("study", req.Study),
		slog.Bool("fail_fast", req.FailFast),
		slog.Bool("with_narratives", req.WithNarratives),
		slog.String("request_id", reqID))

	run, err := h.service.StartRun(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run start failed")
		h.handleRunError(w, r.WithContext(ctx), err)
		return
	}

	span.SetAttributes(attribute.String("run.id", run.ID))
	h.logger.InfoContext(ctx, "run accepted",
		slog.String("run_id", run.ID),
		slog.String("study", run.Study),
		slog.String("request_id", reqID))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, run)
}

// GetRun handles GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")

	h.logger.DebugContext(ctx, "run status request",
		slog.String("run_id", runID),
		slog.String("request_id", middleware.GetReqID(ctx)))

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		h.handleRunError(w, r, err)
		return
	}

	render.JSON(w, r, run)
}

// ListRuns handles GET /api/runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	status, ok := h.query.ValidateEnum(w, r, "status",
		[]string{"pending", "running", "completed", "failed", "cancelled"}, "")
	if !ok {
		return
	}
	study, ok := h.query.ValidateEnum(w, r, "study",
		[]string{"goalkeeper", "var_impact", "all"}, "")
	if !ok {
		return
	}
	page, ok := h.query.ValidateInt(w, r, "page", 1, 10000, 1)
	if !ok {
		return
	}
	pageSize, ok := h.query.ValidateInt(w, r, "page_size", 1, 100, services.DefaultRunPageSize)
	if !ok {
		return
	}

	h.logger.DebugContext(ctx, "listing runs",
		slog.String("status_filter", status),
		slog.String("study_filter", study),
		slog.Int("page", page),
		slog.Int("page_size", pageSize),
		slog.String("request_id", reqID))

	runs, err := h.service.ListRuns(ctx, api.RunListRequest{
		PaginationRequest: api.PaginationRequest{Page: page, PageSize: pageSize},
		Status:            status,
		Study:             study,
	})
	if err != nil {
		h.handleRunError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"runs":      runs,
		"count":     len(runs),
		"page":      page,
		"page_size": pageSize,
	})
}

// StopRun handles DELETE /api/runs/{id}
func (h *RunHandler) StopRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("run-handler")

	ctx, span := tracer.Start(ctx, "run_handler.stop_run",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/runs/{id}"),
			attribute.String("run.id", runID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "run stop request",
		slog.String("run_id", runID),
		slog.String("request_id", reqID))

	if err := h.service.StopRun(ctx, runID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run cancellation failed")
		h.handleRunError(w, r.WithContext(ctx), err)
		return
	}

	h.logger.InfoContext(ctx, "run cancellation requested",
		slog.String("run_id", runID),
		slog.String("request_id", reqID))

	render.JSON(w, r, map[string]string{
		"message": "run cancellation requested",
	})
}

// handleRunError maps run service errors to API responses
func (h *RunHandler) handleRunError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	h.logger.ErrorContext(ctx, "run request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("trace_id", infrastructure.GetTraceID(ctx)),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method))

	switch {
	case errors.Is(err, services.ErrRunNotFound):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusNotFound,
			"RUN_NOT_FOUND",
			"Run not found",
		))
	case errors.Is(err, services.ErrRunConflict):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusConflict,
			"RUN_CONFLICT",
			"A run covering this study is already active",
			map[string]interface{}{"cause": err.Error()},
		))
	case errors.Is(err, services.ErrRunNotRunning):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusConflict,
			"RUN_NOT_RUNNING",
			"Run has already finished and cannot be cancelled",
		))
	case errors.Is(err, services.ErrUnknownStudy):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest,
			"UNKNOWN_STUDY",
			"Unknown study name",
			map[string]interface{}{"cause": err.Error()},
		))
	case errors.Is(err, services.ErrNarrativesDisabled):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusServiceUnavailable,
			"NARRATIVES_DISABLED",
			"Narrative generation is not configured on this server",
		))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}
