package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "pitchstats/internal/errors"
	"pitchstats/internal/infrastructure"
	"pitchstats/internal/shared/testutil"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		headerID string
	}{
		{name: "generates id when header absent", headerID: ""},
		{name: "adopts caller-supplied id", headerID: "client-supplied-id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxReqID, ctxTraceID string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxReqID = GetReqID(r.Context())
				ctxTraceID = infrastructure.GetTraceID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			if tt.headerID != "" {
				req.Header.Set("X-Request-ID", tt.headerID)
			}
			w := httptest.NewRecorder()

			RequestID(next).ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			require.NotEmpty(t, got)
			if tt.headerID != "" {
				assert.Equal(t, tt.headerID, got)
			} else {
				_, err := uuid.Parse(got)
				assert.NoError(t, err, "generated request id should be a UUID")
			}

			assert.Equal(t, got, ctxReqID, "handler should see the same id")
			assert.Equal(t, got, ctxTraceID, "request id should seed the trace id")
		})
	}
}

func TestGetReqID_Missing(t *testing.T) {
	assert.Empty(t, GetReqID(context.Background()))
}

func TestStructuredLogger(t *testing.T) {
	logger, logHandler := testutil.NewTestLoggerWithCapture(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	})

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	w := httptest.NewRecorder()

	StructuredLogger(logger)(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, logHandler.ContainsMessage("request started"))
	assert.True(t, logHandler.ContainsMessage("request completed"))
	assert.True(t, logHandler.ContainsAttr("method", "POST"))
	assert.True(t, logHandler.ContainsAttr("status", int64(http.StatusCreated)))
	assert.True(t, logHandler.ContainsAttr("bytes", int64(len("created"))))
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows requests within the burst", func(t *testing.T) {
		logger := testutil.NewTestLogger(t)
		errorHandler := apierrors.NewErrorHandler(logger, false)
		rl := NewRateLimiter(100, 5, logger, errorHandler)

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		handler := rl.Handler(next)

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/results/goalkeeper", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})

	t.Run("rejects requests over the limit with a problem document", func(t *testing.T) {
		logger, logHandler := testutil.NewTestLoggerWithCapture(t)
		errorHandler := apierrors.NewErrorHandler(logger, false)
		rl := NewRateLimiter(0.001, 1, logger, errorHandler)

		nextCalls := 0
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalls++
			w.WriteHeader(http.StatusOK)
		})
		handler := rl.Handler(next)

		w1 := httptest.NewRecorder()
		handler.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/api/results/goalkeeper", nil))
		require.Equal(t, http.StatusOK, w1.Code)

		w2 := httptest.NewRecorder()
		handler.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/api/results/goalkeeper", nil))

		assert.Equal(t, http.StatusTooManyRequests, w2.Code)
		assert.Equal(t, 1, nextCalls, "rejected request must not reach the handler")
		assert.Equal(t, "60", w2.Header().Get("Retry-After"))
		assert.Contains(t, w2.Header().Get("Content-Type"), "application/json")

		var problem map[string]interface{}
		require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &problem))
		assert.Equal(t, apierrors.TypeRateLimit, problem["type"])
		assert.Equal(t, float64(http.StatusTooManyRequests), problem["status"])
		assert.Equal(t, "RATE_LIMIT_EXCEEDED", problem["error_code"])

		assert.True(t, logHandler.ContainsMessage("rate limit exceeded"))
	})
}

func TestTimeout(t *testing.T) {
	t.Run("passes through a handler that finishes in time", func(t *testing.T) {
		logger := testutil.NewTestLogger(t)
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})

		w := httptest.NewRecorder()
		Timeout(time.Second, logger)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	})

	t.Run("answers 504 when the handler is too slow", func(t *testing.T) {
		logger, logHandler := testutil.NewTestLoggerWithCapture(t)
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
			w.Write([]byte("too late"))
		})

		w := httptest.NewRecorder()
		Timeout(30*time.Millisecond, logger)(next).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/runs", nil))

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.NotContains(t, w.Body.String(), "too late")

		var problem map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
		assert.Equal(t, apierrors.TypeTimeout, problem["type"])
		assert.Equal(t, "Request Timeout", problem["title"])

		assert.True(t, logHandler.ContainsMessage("request timeout"))
	})

	t.Run("lets the handler finish once it has started writing", func(t *testing.T) {
		logger := testutil.NewTestLogger(t)
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("partial"))
			<-r.Context().Done()
		})

		w := httptest.NewRecorder()
		Timeout(50*time.Millisecond, logger)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/results/goalkeeper", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "partial", w.Body.String())
	})

	t.Run("re-panics on the request goroutine", func(t *testing.T) {
		logger := testutil.NewTestLogger(t)
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})

		defer func() {
			p := recover()
			require.NotNil(t, p, "panic should reach the recovery middleware")
			assert.Equal(t, "boom", p)
		}()

		w := httptest.NewRecorder()
		Timeout(time.Second, logger)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		config         CORSConfig
		method         string
		origin         string
		wantStatus     int
		wantAllowed    string
		wantNextCalled bool
	}{
		{
			name:           "allowed origin is echoed back",
			config:         CORSConfig{AllowedOrigins: []string{"https://dashboard.example.com"}},
			method:         http.MethodGet,
			origin:         "https://dashboard.example.com",
			wantStatus:     http.StatusOK,
			wantAllowed:    "https://dashboard.example.com",
			wantNextCalled: true,
		},
		{
			name:           "unknown origin gets no allow header",
			config:         CORSConfig{AllowedOrigins: []string{"https://dashboard.example.com"}},
			method:         http.MethodGet,
			origin:         "https://evil.example.com",
			wantStatus:     http.StatusOK,
			wantAllowed:    "",
			wantNextCalled: true,
		},
		{
			name:           "wildcard allows any origin",
			config:         CORSConfig{AllowedOrigins: []string{"*"}},
			method:         http.MethodGet,
			origin:         "https://anything.example.com",
			wantStatus:     http.StatusOK,
			wantAllowed:    "https://anything.example.com",
			wantNextCalled: true,
		},
		{
			name:           "empty allow list permits all",
			config:         CORSConfig{},
			method:         http.MethodGet,
			origin:         "https://dashboard.example.com",
			wantStatus:     http.StatusOK,
			wantAllowed:    "https://dashboard.example.com",
			wantNextCalled: true,
		},
		{
			name:           "preflight is answered without reaching the handler",
			config:         CORSConfig{AllowedOrigins: []string{"https://dashboard.example.com"}},
			method:         http.MethodOptions,
			origin:         "https://dashboard.example.com",
			wantStatus:     http.StatusNoContent,
			wantAllowed:    "https://dashboard.example.com",
			wantNextCalled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/api/health", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()

			CORS(tt.config)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllowed, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantNextCalled, nextCalled)
			assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
			assert.NotEmpty(t, w.Header().Get("Access-Control-Max-Age"))
		})
	}
}

func TestCORS_CredentialsAndExposedHeaders(t *testing.T) {
	config := CORSConfig{
		AllowedOrigins:   []string{"https://dashboard.example.com"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           600,
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	w := httptest.NewRecorder()

	CORS(config)(next).ServeHTTP(w, req)

	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
}
