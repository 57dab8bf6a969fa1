package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "pitchstats/internal/errors"
	"pitchstats/internal/middleware"
	"pitchstats/internal/services"
	"pitchstats/internal/shared/testutil"
	api "pitchstats/pkg/contracts/api/v1"
	"pitchstats/pkg/contracts/domain"
)

// MockRunService mocks RunServiceInterface
type MockRunService struct {
	mock.Mock
}

func (m *MockRunService) StartRun(ctx context.Context, req api.RunStartRequest) (*domain.Run, error) {
	args := m.Called(ctx, req)
	if run := args.Get(0); run != nil {
		return run.(*domain.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRunService) StopRun(ctx context.Context, runID string) error {
	return m.Called(ctx, runID).Error(0)
}

func (m *MockRunService) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	args := m.Called(ctx, runID)
	if run := args.Get(0); run != nil {
		return run.(*domain.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRunService) ListRuns(ctx context.Context, req api.RunListRequest) ([]*domain.Run, error) {
	args := m.Called(ctx, req)
	if runs := args.Get(0); runs != nil {
		return runs.([]*domain.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func newRunHandlerEnv(t *testing.T) (*MockRunService, chi.Router) {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	errorHandler := apierrors.NewErrorHandler(logger, false)
	validate := middleware.NewValidationMiddleware(logger, errorHandler)

	svc := &MockRunService{}
	handler := NewRunHandler(svc, validate, logger, errorHandler)

	r := chi.NewRouter()
	r.Mount("/api/runs", handler.Routes())
	return svc, r
}

func testRun(id, study string) *domain.Run {
	return &domain.Run{
		ID:        id,
		Study:     study,
		Status:    domain.RunStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func postJSON(t *testing.T, router chi.Router, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRunHandler_StartRun(t *testing.T) {
	svc, router := newRunHandlerEnv(t)
	svc.On("StartRun", mock.Anything, api.RunStartRequest{Study: "goalkeeper", FailFast: true}).
		Return(testRun("run-1", "goalkeeper"), nil)

	rec := postJSON(t, router, "/api/runs", map[string]interface{}{
		"study":     "goalkeeper",
		"fail_fast": true,
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "run-1", body["id"])
	assert.Equal(t, "goalkeeper", body["study"])
	assert.Equal(t, "pending", body["status"])
	svc.AssertExpectations(t)
}

func TestRunHandler_StartRun_Validation(t *testing.T) {
	tests := []struct {
		name      string
		body      interface{}
		errorCode string
	}{
		{
			name:      "unknown study",
			body:      map[string]interface{}{"study": "possession"},
			errorCode: "VALIDATION_FAILED",
		},
		{
			name:      "missing study",
			body:      map[string]interface{}{"fail_fast": true},
			errorCode: "VALIDATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, router := newRunHandlerEnv(t)

			rec := postJSON(t, router, "/api/runs", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.errorCode, body["error_code"])
			svc.AssertNotCalled(t, "StartRun", mock.Anything, mock.Anything)
		})
	}
}

func TestRunHandler_StartRun_MalformedJSON(t *testing.T) {
	svc, router := newRunHandlerEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/runs", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "INVALID_REQUEST", body["error_code"])
	svc.AssertNotCalled(t, "StartRun", mock.Anything, mock.Anything)
}

func TestRunHandler_StartRun_Conflict(t *testing.T) {
	svc, router := newRunHandlerEnv(t)
	svc.On("StartRun", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: goalkeeper (run run-0)", services.ErrRunConflict))

	rec := postJSON(t, router, "/api/runs", map[string]interface{}{"study": "goalkeeper"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "RUN_CONFLICT", body["error_code"])
}

func TestRunHandler_StartRun_NarrativesDisabled(t *testing.T) {
	svc, router := newRunHandlerEnv(t)
	svc.On("StartRun", mock.Anything, mock.Anything).
		Return(nil, services.ErrNarrativesDisabled)

	rec := postJSON(t, router, "/api/runs", map[string]interface{}{
		"study":           "goalkeeper",
		"with_narratives": true,
	})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "NARRATIVES_DISABLED", body["error_code"])
}

func TestRunHandler_GetRun(t *testing.T) {
	svc, router := newRunHandlerEnv(t)
	svc.On("GetRun", mock.Anything, "run-1").Return(testRun("run-1", "all"), nil)
	svc.On("GetRun", mock.Anything, "missing").Return(nil, services.ErrRunNotFound)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "run-1", body["id"])
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "RUN_NOT_FOUND", body["error_code"])
	})
}

func TestRunHandler_ListRuns(t *testing.T) {
	svc, router := newRunHandlerEnv(t)
	svc.On("ListRuns", mock.Anything, api.RunListRequest{
		PaginationRequest: api.PaginationRequest{Page: 2, PageSize: 5},
		Status:            "completed",
		Study:             "goalkeeper",
	}).Return([]*domain.Run{testRun("run-2", "goalkeeper")}, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/runs?status=completed&study=goalkeeper&page=2&page_size=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(5), body["page_size"])
	runs, ok := body["runs"].([]interface{})
	require.True(t, ok)
	require.Len(t, runs, 1)
	svc.AssertExpectations(t)
}

func TestRunHandler_ListRuns_Defaults(t *testing.T) {
	svc, router := newRunHandlerEnv(t)
	svc.On("ListRuns", mock.Anything, api.RunListRequest{
		PaginationRequest: api.PaginationRequest{Page: 1, PageSize: services.DefaultRunPageSize},
	}).Return([]*domain.Run{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestRunHandler_ListRuns_BadQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"invalid status", "?status=paused"},
		{"invalid study", "?study=possession"},
		{"page size too large", "?page_size=5000"},
		{"non-numeric page", "?page=first"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, router := newRunHandlerEnv(t)

			req := httptest.NewRequest(http.MethodGet, "/api/runs"+tt.query, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			svc.AssertNotCalled(t, "ListRuns", mock.Anything, mock.Anything)
		})
	}
}

func TestRunHandler_StopRun(t *testing.T) {
	svc, router := newRunHandlerEnv(t)
	svc.On("StopRun", mock.Anything, "run-1").Return(nil)
	svc.On("StopRun", mock.Anything, "done").Return(services.ErrRunNotRunning)
	svc.On("StopRun", mock.Anything, "missing").Return(services.ErrRunNotFound)

	t.Run("running run", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/runs/run-1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "run cancellation requested", body["message"])
	})

	t.Run("terminal run", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/runs/done", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "RUN_NOT_RUNNING", body["error_code"])
	})

	t.Run("unknown run", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/runs/missing", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
