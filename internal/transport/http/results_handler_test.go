package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "pitchstats/internal/errors"
	"pitchstats/internal/insights"
	"pitchstats/internal/middleware"
	"pitchstats/internal/services"
	"pitchstats/internal/shared/testutil"
	"pitchstats/pkg/contracts/domain"
)

// MockResultsService mocks ResultsServiceInterface
type MockResultsService struct {
	mock.Mock
}

func (m *MockResultsService) GoalkeeperResults(ctx context.Context) (*domain.GoalkeeperArtifact, error) {
	args := m.Called(ctx)
	if a := args.Get(0); a != nil {
		return a.(*domain.GoalkeeperArtifact), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockResultsService) VARImpactResults(ctx context.Context) (*domain.VARImpactArtifact, error) {
	args := m.Called(ctx)
	if a := args.Get(0); a != nil {
		return a.(*domain.VARImpactArtifact), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockResultsService) GoalkeeperAggregates(ctx context.Context) ([]domain.KeeperRecord, error) {
	args := m.Called(ctx)
	if a := args.Get(0); a != nil {
		return a.([]domain.KeeperRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockResultsService) VARImpactAggregates(ctx context.Context) ([]domain.TeamRecord, error) {
	args := m.Called(ctx)
	if a := args.Get(0); a != nil {
		return a.([]domain.TeamRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockResultsService) GenerateNarrative(ctx context.Context, studyName string, kind insights.NarrativeKind) (*insights.Narrative, error) {
	args := m.Called(ctx, studyName, kind)
	if n := args.Get(0); n != nil {
		return n.(*insights.Narrative), args.Error(1)
	}
	return nil, args.Error(1)
}

func newResultsHandlerEnv(t *testing.T) (*MockResultsService, chi.Router) {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	errorHandler := apierrors.NewErrorHandler(logger, false)
	validate := middleware.NewValidationMiddleware(logger, errorHandler)

	svc := &MockResultsService{}
	handler := NewResultsHandler(svc, validate, logger, errorHandler)

	r := chi.NewRouter()
	r.Get("/api/results/{study}", handler.GetResults)
	r.Get("/api/aggregates/{study}", handler.GetAggregates)
	r.Post("/api/narratives", handler.GenerateNarrative)
	return svc, r
}

func getPath(t *testing.T, router chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestResultsHandler_GetResults(t *testing.T) {
	svc, router := newResultsHandlerEnv(t)
	svc.On("GoalkeeperResults", mock.Anything).Return(&domain.GoalkeeperArtifact{
		Entities:       42,
		PairedEntities: 30,
	}, nil)
	svc.On("VARImpactResults", mock.Anything).Return(&domain.VARImpactArtifact{
		Warnings: []string{"short baseline cohort"},
	}, nil)

	t.Run("goalkeeper", func(t *testing.T) {
		rec := getPath(t, router, "/api/results/goalkeeper")

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, "goalkeeper", body["study"])
		data, ok := body["data"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(42), data["entities"])
	})

	t.Run("var_impact", func(t *testing.T) {
		rec := getPath(t, router, "/api/results/var_impact")

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "var_impact", body["study"])
	})

	svc.AssertExpectations(t)
}

func TestResultsHandler_GetResults_BadStudy(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		// Artifact reads address a single study; the combined "all"
		// selector only exists for runs.
		{"all rejected", "/api/results/all"},
		{"unknown study", "/api/results/possession"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, router := newResultsHandlerEnv(t)

			rec := getPath(t, router, tt.path)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
			svc.AssertNotCalled(t, "GoalkeeperResults", mock.Anything)
			svc.AssertNotCalled(t, "VARImpactResults", mock.Anything)
		})
	}
}

func TestResultsHandler_GetResults_NotFound(t *testing.T) {
	svc, router := newResultsHandlerEnv(t)
	svc.On("GoalkeeperResults", mock.Anything).Return(nil, services.ErrArtifactNotFound)

	rec := getPath(t, router, "/api/results/goalkeeper")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ARTIFACT_NOT_FOUND", body["error_code"])
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "goalkeeper", details["study"])
}

func TestResultsHandler_GetAggregates(t *testing.T) {
	svc, router := newResultsHandlerEnv(t)
	svc.On("GoalkeeperAggregates", mock.Anything).Return([]domain.KeeperRecord{
		{CanonicalID: "alisson becker", PlayerName: "Alisson Becker"},
		{CanonicalID: "ederson moraes", PlayerName: "Ederson Moraes"},
	}, nil)
	svc.On("VARImpactAggregates", mock.Anything).Return([]domain.TeamRecord{
		{CanonicalID: "arsenal", TeamName: "Arsenal", Cohort: "pre_var"},
	}, nil)

	t.Run("goalkeeper", func(t *testing.T) {
		rec := getPath(t, router, "/api/aggregates/goalkeeper")

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(2), body["count"])
		records, ok := body["data"].([]interface{})
		require.True(t, ok)
		require.Len(t, records, 2)
		first, ok := records[0].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "alisson becker", first["canonical_id"])
	})

	t.Run("var_impact", func(t *testing.T) {
		rec := getPath(t, router, "/api/aggregates/var_impact")

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(1), body["count"])
	})

	svc.AssertExpectations(t)
}

func TestResultsHandler_GenerateNarrative(t *testing.T) {
	svc, router := newResultsHandlerEnv(t)
	svc.On("GenerateNarrative", mock.Anything, "goalkeeper", insights.KindScouting).
		Return(&insights.Narrative{
			Kind:        insights.KindScouting,
			Study:       "goalkeeper",
			Content:     "Taller keepers in this sample concede fewer goals per 90.",
			GeneratedAt: time.Now().UTC(),
		}, nil)

	rec := postJSON(t, router, "/api/narratives", map[string]interface{}{
		"study": "goalkeeper",
		"kind":  "scouting",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "scouting", data["kind"])
	assert.Contains(t, data["content"], "Taller keepers")
	svc.AssertExpectations(t)
}

func TestResultsHandler_GenerateNarrative_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"unknown kind", map[string]interface{}{"study": "goalkeeper", "kind": "tactical"}},
		{"missing study", map[string]interface{}{"kind": "scouting"}},
		{"study all", map[string]interface{}{"study": "all", "kind": "scouting"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, router := newResultsHandlerEnv(t)

			rec := postJSON(t, router, "/api/narratives", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			svc.AssertNotCalled(t, "GenerateNarrative", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestResultsHandler_GenerateNarrative_Disabled(t *testing.T) {
	svc, router := newResultsHandlerEnv(t)
	svc.On("GenerateNarrative", mock.Anything, "goalkeeper", insights.KindRecruitment).
		Return(nil, services.ErrNarrativesDisabled)

	rec := postJSON(t, router, "/api/narratives", map[string]interface{}{
		"study": "goalkeeper",
		"kind":  "recruitment",
	})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "NARRATIVES_DISABLED", body["error_code"])
}
