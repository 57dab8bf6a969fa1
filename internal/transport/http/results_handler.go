package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "pitchstats/internal/errors"
	"pitchstats/internal/insights"
	"pitchstats/internal/middleware"
	"pitchstats/internal/services"
	"pitchstats/internal/study"
	api "pitchstats/pkg/contracts/api/v1"
)

// ResultsHandler serves study artifacts and narratives over HTTP
type ResultsHandler struct {
	service      ResultsServiceInterface
	validate     *middleware.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(service ResultsServiceInterface, validate *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ResultsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ResultsHandler{
		service:      service,
		validate:     validate,
		logger:       logger.With(slog.String("handler", "results")),
		errorHandler: errorHandler,
	}
}

// GetResults handles GET /api/results/{study}
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	studyName, ok := h.studyParam(w, r)
	if !ok {
		return
	}

	h.logger.InfoContext(ctx, "fetching results",
		slog.String("study", studyName),
		slog.String("request_id", reqID))

	var (
		artifact interface{}
		err      error
	)
	switch studyName {
	case study.StudyGoalkeeper:
		artifact, err = h.service.GoalkeeperResults(ctx)
	case study.StudyVARImpact:
		artifact, err = h.service.VARImpactResults(ctx)
	}
	if err != nil {
		h.handleResultsError(w, r, studyName, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"study":  studyName,
		"data":   artifact,
	})
}

// GetAggregates handles GET /api/aggregates/{study}
func (h *ResultsHandler) GetAggregates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	studyName, ok := h.studyParam(w, r)
	if !ok {
		return
	}

	h.logger.InfoContext(ctx, "fetching aggregates",
		slog.String("study", studyName),
		slog.String("request_id", reqID))

	var (
		records interface{}
		count   int
		err     error
	)
	switch studyName {
	case study.StudyGoalkeeper:
		recs, e := h.service.GoalkeeperAggregates(ctx)
		records, count, err = recs, len(recs), e
	case study.StudyVARImpact:
		recs, e := h.service.VARImpactAggregates(ctx)
		records, count, err = recs, len(recs), e
	}
	if err != nil {
		h.handleResultsError(w, r, studyName, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"study":  studyName,
		"data":   records,
		"count":  count,
	})
}

// GenerateNarrative handles POST /api/narratives
func (h *ResultsHandler) GenerateNarrative(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	var req api.NarrativeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validate.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "narrative generation request",
		slog.String("study", req.Study),
		slog.String("kind", req.Kind),
		slog.String("request_id", reqID))

	narrative, err := h.service.GenerateNarrative(ctx, req.Study, insights.NarrativeKind(req.Kind))
	if err != nil {
		h.handleResultsError(w, r, req.Study, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   narrative,
	})
}

// studyParam validates the {study} URL parameter against the request
// contract. Unlike runs, artifact reads address one study at a time, so
// "all" is rejected here.
func (h *ResultsHandler) studyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	req := api.ResultsRequest{Study: chi.URLParam(r, "study")}
	if err := h.validate.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return "", false
	}
	return req.Study, true
}

// handleResultsError maps results service errors to API responses
func (h *ResultsHandler) handleResultsError(w http.ResponseWriter, r *http.Request, studyName string, err error) {
	ctx := r.Context()

	h.logger.ErrorContext(ctx, "results request failed",
		slog.String("study", studyName),
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("path", r.URL.Path))

	switch {
	case errors.Is(err, services.ErrArtifactNotFound):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusNotFound,
			"ARTIFACT_NOT_FOUND",
			fmt.Sprintf("No artifacts for study '%s'; run the study first", studyName),
			map[string]interface{}{"study": studyName},
		))
	case errors.Is(err, services.ErrUnknownStudy):
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("study", fmt.Sprintf("Unknown study '%s'", studyName)))
	case errors.Is(err, services.ErrUnknownNarrativeKind):
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("kind", "Unknown narrative kind"))
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
