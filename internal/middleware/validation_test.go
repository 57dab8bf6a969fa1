package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "pitchstats/internal/errors"
	"pitchstats/internal/shared/testutil"
)

func newValidationMiddleware(t *testing.T) *ValidationMiddleware {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	return NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false))
}

func TestValidationMiddleware_ValidateRequest(t *testing.T) {
	t.Run("read-only methods pass through", func(t *testing.T) {
		m := newValidationMiddleware(t)

		nextCalled := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusOK)
		})

		w := httptest.NewRecorder()
		m.ValidateRequest(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/results/goalkeeper", nil))

		assert.True(t, nextCalled)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects oversized bodies", func(t *testing.T) {
		m := newValidationMiddleware(t)

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not run for an oversized body")
		})

		req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
		req.ContentLength = defaultMaxBodySize + 1
		w := httptest.NewRecorder()

		m.ValidateRequest(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

		var problem map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
		assert.Equal(t, "PAYLOAD_TOO_LARGE", problem["error_code"])
	})

	t.Run("rejects malformed JSON before the handler decodes it", func(t *testing.T) {
		m := newValidationMiddleware(t)

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not run for malformed JSON")
		})

		req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"study": "goalkeeper"`))
		w := httptest.NewRecorder()

		m.ValidateRequest(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var problem map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
		assert.Equal(t, "INVALID_JSON", problem["error_code"])
		assert.Equal(t, apierrors.TypeValidation, problem["type"])
	})

	t.Run("valid body reaches the handler intact", func(t *testing.T) {
		m := newValidationMiddleware(t)
		body := `{"study":"goalkeeper","min_minutes":900}`

		var seenBody string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			seenBody = string(b)
			w.WriteHeader(http.StatusAccepted)
		})

		req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(body))
		w := httptest.NewRecorder()

		m.ValidateRequest(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, body, seenBody, "body must be replayable after validation")
	})

	t.Run("empty body passes through", func(t *testing.T) {
		m := newValidationMiddleware(t)

		nextCalled := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusOK)
		})

		w := httptest.NewRecorder()
		m.ValidateRequest(next).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/runs", nil))

		assert.True(t, nextCalled)
	})
}

func TestValidationMiddleware_ValidateStruct(t *testing.T) {
	type runRequest struct {
		Study      string `json:"study" validate:"required,study"`
		MinMinutes int    `json:"min_minutes" validate:"min=0,max=3420"`
	}

	m := newValidationMiddleware(t)

	t.Run("valid struct", func(t *testing.T) {
		err := m.ValidateStruct(&runRequest{Study: "goalkeeper", MinMinutes: 900})
		assert.NoError(t, err)
	})

	tests := []struct {
		name        string
		req         runRequest
		wantField   string
		wantMessage string
	}{
		{
			name:        "missing study",
			req:         runRequest{MinMinutes: 90},
			wantField:   "study",
			wantMessage: "study is required",
		},
		{
			name:        "unknown study",
			req:         runRequest{Study: "cricket"},
			wantField:   "study",
			wantMessage: "study must be a known study name",
		},
		{
			name:        "minutes below range",
			req:         runRequest{Study: "var_impact", MinMinutes: -1},
			wantField:   "min_minutes",
			wantMessage: "min_minutes must be at least 0",
		},
		{
			name:        "minutes above range",
			req:         runRequest{Study: "var_impact", MinMinutes: 4000},
			wantField:   "min_minutes",
			wantMessage: "min_minutes must be at most 3420",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateStruct(&tt.req)
			require.Error(t, err)

			apiErr, ok := err.(*apierrors.APIError)
			require.True(t, ok, "expected *APIError, got %T", err)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)

			details, ok := apiErr.Details.(apierrors.ValidationErrors)
			require.True(t, ok, "expected ValidationErrors details, got %T", apiErr.Details)
			require.NotEmpty(t, details.Errors)
			assert.Equal(t, tt.wantField, details.Errors[0].Field)
			assert.Equal(t, tt.wantMessage, details.Errors[0].Message)
		})
	}
}

func TestContentTypeValidator(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		contentType    string
		wantStatus     int
		wantNextCalled bool
		wantErrorCode  string
	}{
		{
			name:           "GET skips the check",
			method:         http.MethodGet,
			wantStatus:     http.StatusOK,
			wantNextCalled: true,
		},
		{
			name:           "DELETE skips the check",
			method:         http.MethodDelete,
			wantStatus:     http.StatusOK,
			wantNextCalled: true,
		},
		{
			name:           "exact match accepted",
			method:         http.MethodPost,
			contentType:    "application/json",
			wantStatus:     http.StatusOK,
			wantNextCalled: true,
		},
		{
			name:           "charset suffix accepted",
			method:         http.MethodPost,
			contentType:    "application/json; charset=utf-8",
			wantStatus:     http.StatusOK,
			wantNextCalled: true,
		},
		{
			name:          "missing content type rejected",
			method:        http.MethodPost,
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "MISSING_CONTENT_TYPE",
		},
		{
			name:          "wrong content type rejected",
			method:        http.MethodPost,
			contentType:   "text/plain",
			wantStatus:    http.StatusUnsupportedMediaType,
			wantErrorCode: "UNSUPPORTED_MEDIA_TYPE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/api/runs", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()

			ContentTypeValidator("application/json")(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantNextCalled, nextCalled)

			if tt.wantErrorCode != "" {
				var response apierrors.APIError
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, tt.wantErrorCode, response.ErrorCode)
			}
		})
	}
}

func TestQueryParamValidator_ValidateInt(t *testing.T) {
	logger := testutil.NewTestLogger(t)
	v := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	tests := []struct {
		name       string
		query      string
		wantValue  int
		wantOK     bool
		wantStatus int
	}{
		{name: "absent uses default", query: "", wantValue: 450, wantOK: true},
		{name: "valid value", query: "min_minutes=900", wantValue: 900, wantOK: true},
		{name: "not an integer", query: "min_minutes=abc", wantOK: false, wantStatus: http.StatusBadRequest},
		{name: "above range", query: "min_minutes=9999", wantOK: false, wantStatus: http.StatusBadRequest},
		{name: "below range", query: "min_minutes=-1", wantOK: false, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/api/results/goalkeeper"
			if tt.query != "" {
				url += "?" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			w := httptest.NewRecorder()

			got, ok := v.ValidateInt(w, req, "min_minutes", 0, 3420, 450)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantValue, got)
			} else {
				assert.Equal(t, tt.wantStatus, w.Code)

				var problem map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
				assert.Equal(t, "VALIDATION_FAILED", problem["error_code"])
			}
		})
	}
}

func TestQueryParamValidator_ValidateEnum(t *testing.T) {
	logger := testutil.NewTestLogger(t)
	v := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))
	allowed := []string{"json", "csv", "xlsx"}

	t.Run("absent uses default", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/results/goalkeeper", nil)
		w := httptest.NewRecorder()

		got, ok := v.ValidateEnum(w, req, "format", allowed, "json")
		assert.True(t, ok)
		assert.Equal(t, "json", got)
	})

	t.Run("allowed value", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/results/goalkeeper?format=xlsx", nil)
		w := httptest.NewRecorder()

		got, ok := v.ValidateEnum(w, req, "format", allowed, "json")
		assert.True(t, ok)
		assert.Equal(t, "xlsx", got)
	})

	t.Run("unknown value rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/results/goalkeeper?format=pdf", nil)
		w := httptest.NewRecorder()

		_, ok := v.ValidateEnum(w, req, "format", allowed, "json")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
