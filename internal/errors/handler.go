package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem type URIs. Relative references per RFC 7807 section 3.1.
const (
	TypeValidation      = "/errors/validation"
	TypeNotFound        = "/errors/not-found"
	TypeRateLimit       = "/errors/rate-limit"
	TypeInternal        = "/errors/internal"
	TypeServiceDown     = "/errors/service-unavailable"
	TypeTimeout         = "/errors/timeout"
	TypeConflict        = "/errors/conflict"
	TypePayloadTooLarge = "/errors/payload-too-large"
)

// Domain problem type URIs.
const (
	TypeDataIntegrity      = "/errors/data/integrity"
	TypeInsufficientSample = "/errors/data/insufficient-sample"
	TypeDataParsing        = "/errors/data/parsing"
	TypeStudyNotFound      = "/errors/study/not-found"
	TypeRunNotFound        = "/errors/run/not-found"
	TypeRunInProgress      = "/errors/run/already-running"
)

// ErrorHandler converts whatever error reaches the transport layer into an
// RFC 7807 response and logs it with request context.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates an error handler. includeStack should be true only
// in development; it leaks stack traces into responses.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs err, converts it to a problem document, and renders it.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem maps an error to its problem document. Typed errors map
// precisely; anything unrecognized becomes an opaque 500 so internals do not
// leak.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	// Integrity failures carry their colliding keys into the response so the
	// caller can fix the source data.
	var integrityErr *DataIntegrityError
	if errors.As(err, &integrityErr) {
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeDataIntegrity,
			"Data Integrity Violation",
			integrityErr.Error(),
			r.URL.Path,
		).WithExtension("key", integrityErr.Key).
			WithExtension("pass", integrityErr.Pass).
			WithExtension("names", integrityErr.Names)
	}

	var sampleErr *InsufficientSampleError
	if errors.As(err, &sampleErr) {
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeInsufficientSample,
			"Insufficient Sample",
			sampleErr.Error(),
			r.URL.Path,
		).WithExtension("procedure", sampleErr.Procedure).
			WithExtension("sample_sizes", sampleErr.SampleSizes)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return h.appErrorToProblem(appErr, r)
	}

	// Last-resort heuristic for plain errors from third-party code.
	if strings.Contains(err.Error(), "not found") {
		return NewProblemDetails(
			http.StatusNotFound,
			TypeNotFound,
			"Resource Not Found",
			err.Error(),
			r.URL.Path,
		)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		r.URL.Path,
	)
}

// appErrorToProblem maps the internal taxonomy to HTTP problems. Context
// entries become extension members.
func (h *ErrorHandler) appErrorToProblem(appErr *AppError, r *http.Request) *ProblemDetails {
	status := http.StatusInternalServerError
	problemType := TypeInternal
	title := "Internal Server Error"

	switch appErr.Type {
	case ErrTypeNotFound:
		status, problemType, title = http.StatusNotFound, TypeNotFound, "Resource Not Found"
	case ErrTypeValidation:
		status, problemType, title = http.StatusBadRequest, TypeValidation, "Validation Failed"
	case ErrTypeParsing:
		status, problemType, title = http.StatusUnprocessableEntity, TypeDataParsing, "Source Data Unreadable"
	case ErrTypeNetwork:
		status, problemType, title = http.StatusServiceUnavailable, TypeServiceDown, "Upstream Service Unavailable"
	case ErrTypeDataIntegrity:
		status, problemType, title = http.StatusUnprocessableEntity, TypeDataIntegrity, "Data Integrity Violation"
	case ErrTypeInsufficientSample:
		status, problemType, title = http.StatusUnprocessableEntity, TypeInsufficientSample, "Insufficient Sample"
	case ErrTypeStorage, ErrTypeConfig:
		// Server-side faults; details stay in the log.
	}

	problem := NewProblemDetails(status, problemType, title, appErr.Error(), r.URL.Path)
	if status == http.StatusInternalServerError {
		problem.Detail = "An unexpected error occurred while processing your request"
	}
	for k, v := range appErr.Context {
		problem.WithExtension(k, v)
	}
	return problem
}

// apiErrorToProblem maps handler-constructed APIErrors by their error code.
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "INVALID_JSON", "MISSING_CONTENT_TYPE", "UNSUPPORTED_MEDIA_TYPE":
		problemType = TypeValidation
	case "NOT_FOUND", "ARTIFACT_NOT_FOUND":
		problemType = TypeNotFound
	case "UNKNOWN_STUDY":
		problemType = TypeStudyNotFound
	case "RUN_NOT_FOUND":
		problemType = TypeRunNotFound
	case "RUN_CONFLICT":
		problemType = TypeRunInProgress
	case "RUN_NOT_RUNNING":
		problemType = TypeConflict
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "NARRATIVES_DISABLED":
		problemType = TypeServiceDown
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic logs the panic with its stack and renders an opaque 500.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound is the router's fallback for unknown paths.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed is the router's fallback for known paths with the wrong
// verb.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeInternal,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
