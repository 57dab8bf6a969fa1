package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SecureHeaders sets the browser security headers. Websocket upgrades are
// passed through untouched.
type SecureHeaders struct {
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool

	ContentSecurityPolicy string
	XFrameOptions         string
	XContentTypeOptions   string
	XSSProtection         string
	ReferrerPolicy        string
	PermissionsPolicy     string

	// DevMode relaxes the CSP for local frontend development.
	DevMode bool
}

// DefaultSecureHeaders returns the production policy.
func DefaultSecureHeaders() *SecureHeaders {
	return &SecureHeaders{
		HSTSMaxAge:            63072000, // 2 years
		HSTSIncludeSubdomains: true,
		HSTSPreload:           true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		XSSProtection:         "1; mode=block",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}
}

// Handler returns the middleware handler. Header values are computed once
// at construction.
func (sh *SecureHeaders) Handler(next http.Handler) http.Handler {
	hsts := sh.hstsValue()

	csp := sh.ContentSecurityPolicy
	if csp == "" && !sh.DevMode {
		csp = sh.defaultCSP()
	}

	permissions := sh.PermissionsPolicy
	if permissions == "" && !sh.DevMode {
		permissions = sh.defaultPermissionsPolicy()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		if hsts != "" && (r.TLS != nil || sh.DevMode) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if csp != "" {
			h.Set("Content-Security-Policy", csp)
		}
		if sh.XFrameOptions != "" {
			h.Set("X-Frame-Options", sh.XFrameOptions)
		}
		if sh.XContentTypeOptions != "" {
			h.Set("X-Content-Type-Options", sh.XContentTypeOptions)
		}
		if sh.XSSProtection != "" {
			h.Set("X-XSS-Protection", sh.XSSProtection)
		}
		if sh.ReferrerPolicy != "" {
			h.Set("Referrer-Policy", sh.ReferrerPolicy)
		}
		if permissions != "" {
			h.Set("Permissions-Policy", permissions)
		}

		next.ServeHTTP(w, r)
	})
}

func (sh *SecureHeaders) hstsValue() string {
	if sh.HSTSMaxAge <= 0 {
		return ""
	}
	hsts := fmt.Sprintf("max-age=%d", sh.HSTSMaxAge)
	if sh.HSTSIncludeSubdomains {
		hsts += "; includeSubDomains"
	}
	if sh.HSTSPreload {
		hsts += "; preload"
	}
	return hsts
}

// defaultCSP allows the dashboard's own assets, the chart CDNs, and the
// websocket connection back to this server.
func (sh *SecureHeaders) defaultCSP() string {
	return strings.Join([]string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net https://cdnjs.cloudflare.com",
		"style-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net https://cdnjs.cloudflare.com",
		"img-src 'self' data: blob:",
		"font-src 'self' https://cdnjs.cloudflare.com",
		"connect-src 'self' ws: wss:",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
		"upgrade-insecure-requests",
	}, "; ")
}

func (sh *SecureHeaders) defaultPermissionsPolicy() string {
	return strings.Join([]string{
		"accelerometer=()",
		"camera=()",
		"geolocation=()",
		"gyroscope=()",
		"magnetometer=()",
		"microphone=()",
		"payment=()",
		"usb=()",
		"interest-cohort=()",
	}, ", ")
}

// AuditLog records an audit trail for the routes it wraps, one entry for
// the request and one for the outcome.
func AuditLog(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			ww := &auditResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			logger.InfoContext(ctx, "audit log",
				slog.String("event_type", "api_access"),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("query", r.URL.Query().Encode()),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			)

			next.ServeHTTP(ww, r)

			logger.InfoContext(ctx, "audit log complete",
				slog.String("event_type", "api_response"),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.statusCode),
				slog.String("duration", time.Since(start).String()),
			)
		})
	}
}

// auditResponseWriter captures the response status code.
type auditResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (w *auditResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *auditResponseWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}
