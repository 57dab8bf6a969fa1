package http

import (
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"pitchstats/internal/study"
)

// ServeMainApp serves the dashboard page from the web directory.
func ServeMainApp(webDir string) http.HandlerFunc {
	indexPath := filepath.Join(webDir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		f, err := os.Open(indexPath)
		if err != nil {
			http.Error(w, "Dashboard page not found", http.StatusNotFound)
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := io.Copy(w, f); err != nil {
			slog.Default().ErrorContext(r.Context(), "failed to serve dashboard page",
				slog.String("error", err.Error()))
		}
	}
}

var testPageTmpl = template.Must(template.New("testpage").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Pitch Stats - Test Page</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .status { padding: 10px; margin: 10px 0; border-radius: 4px; }
        .info { background-color: #d1ecf1; color: #0c5460; }
    </style>
</head>
<body>
    <h1>Pitch Stats - Test Page</h1>
    <div class="status info">
        <strong>Status:</strong> Server is running
        <br><strong>Time:</strong> {{.Time}}
    </div>
    <h2>Quick Links</h2>
    <ul>
        <li><a href="/app">Dashboard</a></li>
        <li><a href="/api/health">Health Check</a></li>
        <li><a href="/api/version">Version Info</a></li>
{{- range .Studies}}
        <li><a href="/api/results/{{.}}">Results: {{.}}</a></li>
{{- end}}
        <li><a href="/ws">WebSocket Endpoint</a></li>
    </ul>
</body>
</html>
`))

// ServeTestPage serves a plain status page for checking the server without
// the dashboard assets.
func ServeTestPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		data := struct {
			Time    string
			Studies []string
		}{
			Time:    time.Now().Format("2006-01-02 15:04:05"),
			Studies: []string{study.StudyGoalkeeper, study.StudyVARImpact},
		}
		if err := testPageTmpl.Execute(w, data); err != nil {
			http.Error(w, "Error rendering page", http.StatusInternalServerError)
		}
	}
}
