package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"pitchstats/internal/config"
	"pitchstats/internal/report"
	ws "pitchstats/internal/websocket"
	"pitchstats/pkg/contracts"
)

// HealthService answers the health, readiness, and liveness probes and the
// version and system-stats endpoints.
type HealthService struct {
	version      string
	repoURL      string
	buildTime    string
	buildID      string
	paths        *config.Paths
	runs         *RunService
	webSocketHub *ws.Hub
	startTime    time.Time
	logger       *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds     float64 `json:"uptime_seconds"`
	DataFiles         int     `json:"data_files"`
	DataSizeBytes     int64   `json:"data_size_bytes"`
	ArtifactFiles     int     `json:"artifact_files"`
	ArtifactSizeBytes int64   `json:"artifact_size_bytes"`
	WebSocketClients  int     `json:"websocket_clients"`
	ActiveRuns        int     `json:"active_runs"`
	GoVersion         string  `json:"go_version"`
	OS                string  `json:"os"`
	Arch              string  `json:"arch"`
}

// NewHealthService creates a health service without build metadata.
func NewHealthService(version, repoURL string, paths *config.Paths, runs *RunService, webSocketHub *ws.Hub, logger *slog.Logger) *HealthService {
	return NewHealthServiceWithBuildInfo(version, repoURL, "", "", paths, runs, webSocketHub, logger)
}

// NewHealthServiceWithBuildInfo creates a health service carrying the build
// stamp injected at link time.
func NewHealthServiceWithBuildInfo(version, repoURL, buildTime, buildID string, paths *config.Paths, runs *RunService, webSocketHub *ws.Hub, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("health service initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime),
		slog.String("build_id", buildID))

	return &HealthService{
		version:      version,
		repoURL:      repoURL,
		buildTime:    buildTime,
		buildID:      buildID,
		paths:        paths,
		runs:         runs,
		webSocketHub: webSocketHub,
		startTime:    time.Now(),
		logger:       logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.Debug("performing health check",
		slog.String("version", hs.version),
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["websocket"] = hs.checkWebSocketHealth()
	status.Services["runs"] = hs.checkRunHealth()
	status.Services["data"] = hs.checkDataHealth()
	status.Services["artifacts"] = hs.checkArtifactsHealth()

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Architecture,
		"data_format":  info.DataFormat,
		"api_version":  info.APIVersion,
		"repo_url":     hs.repoURL,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}

	return result
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}

	if hs.paths != nil {
		stats.DataFiles, stats.DataSizeBytes = dirStats(hs.paths.DataDir)
		stats.ArtifactFiles, stats.ArtifactSizeBytes = dirStats(hs.paths.ArtifactsDir)
	}
	if hs.webSocketHub != nil {
		stats.WebSocketClients = hs.webSocketHub.ClientCount()
	}
	if hs.runs != nil {
		stats.ActiveRuns = hs.runs.ActiveRunCount()
	}

	return stats, nil
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	stats, _ := hs.SystemStats(ctx)

	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     stats,
	}
}

// ComponentStatuses flattens the readiness probes into the per-component
// status map pushed over the websocket status channel.
func (hs *HealthService) ComponentStatuses(ctx context.Context) (string, map[string]string) {
	readiness := hs.ReadinessCheck(ctx)

	components := make(map[string]string, len(readiness.Services))
	for name, svc := range readiness.Services {
		if sh, ok := svc.(ServiceHealth); ok {
			components[name] = sh.Status
		}
	}

	overall := "healthy"
	if readiness.Status != "ready" {
		overall = "degraded"
	}
	return overall, components
}

// Uptime reports how long the service has been running.
func (hs *HealthService) Uptime() time.Duration {
	return time.Since(hs.startTime)
}

// checkWebSocketHealth checks WebSocket service health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.webSocketHub == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "websocket hub not initialized",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.webSocketHub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkRunHealth checks the run registry
func (hs *HealthService) checkRunHealth() ServiceHealth {
	if hs.runs == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "run service not initialized",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d active runs", hs.runs.ActiveRunCount()),
	}
}

// checkDataHealth checks the ingest source directory
func (hs *HealthService) checkDataHealth() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "paths not resolved",
		}
	}
	if _, err := os.Stat(hs.paths.DataDir); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("data directory not accessible: %v", err),
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "data directory accessible",
	}
}

// checkArtifactsHealth checks the artifacts directory. Missing artifacts are
// not a readiness failure; a fresh deployment has none until the first run.
func (hs *HealthService) checkArtifactsHealth() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "paths not resolved",
		}
	}
	if _, err := os.Stat(hs.paths.ArtifactsDir); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("artifacts directory not accessible: %v", err),
		}
	}

	if _, err := os.Stat(hs.paths.GetArtifactPath(report.GoalkeeperArtifactFile)); err != nil {
		return ServiceHealth{
			Status:  "ready",
			Message: "awaiting first run",
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: "artifacts present",
	}
}

// dirStats walks a directory counting regular files and their total size.
func dirStats(dir string) (int, int64) {
	var files int
	var size int64

	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files++
			size += info.Size()
		}
		return nil
	})
	return files, size
}
