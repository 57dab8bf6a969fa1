package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitchstats/internal/config"
	"pitchstats/internal/report"
	"pitchstats/internal/shared/testutil"
	"pitchstats/internal/study"
	ws "pitchstats/internal/websocket"
)

func newHealthEnv(t *testing.T) (*config.Paths, *HealthService) {
	t.Helper()

	base := t.TempDir()
	paths := &config.Paths{
		BaseDir:      base,
		DataDir:      filepath.Join(base, "data"),
		ArtifactsDir: filepath.Join(base, "artifacts"),
	}
	require.NoError(t, os.MkdirAll(paths.DataDir, 0o755))
	require.NoError(t, os.MkdirAll(paths.ArtifactsDir, 0o755))

	logger := testutil.NewTestLogger(t)
	runs := NewRunService(config.Default(), paths, study.DefaultConfig(), nil, nil, nil, logger)
	hub := ws.NewHub(logger)
	svc := NewHealthServiceWithBuildInfo("1.2.3", "https://example.com/pitchstats", "2026-08-01T00:00:00Z", "build-42", paths, runs, hub, logger)
	return paths, svc
}

func TestHealthService_HealthCheck(t *testing.T) {
	_, svc := newHealthEnv(t)

	status := svc.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthService_LivenessCheck(t *testing.T) {
	_, svc := newHealthEnv(t)

	status := svc.LivenessCheck(context.Background())
	assert.Equal(t, "alive", status.Status)
	require.NotNil(t, status.Runtime)
	assert.Contains(t, status.Runtime, "uptime")
	assert.Contains(t, status.Runtime, "go_version")
	assert.Contains(t, status.Runtime, "goroutines")
}

func TestHealthService_ReadinessCheck(t *testing.T) {
	_, svc := newHealthEnv(t)

	status := svc.ReadinessCheck(context.Background())
	assert.Equal(t, "ready", status.Status)
	require.Contains(t, status.Services, "websocket")
	require.Contains(t, status.Services, "runs")
	require.Contains(t, status.Services, "data")
	require.Contains(t, status.Services, "artifacts")

	artifacts, ok := status.Services["artifacts"].(ServiceHealth)
	require.True(t, ok)
	assert.Equal(t, "ready", artifacts.Status)
	assert.Equal(t, "awaiting first run", artifacts.Message)
}

func TestHealthService_ReadinessCheck_MissingDataDir(t *testing.T) {
	paths, svc := newHealthEnv(t)
	require.NoError(t, os.RemoveAll(paths.DataDir))

	status := svc.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)

	data, ok := status.Services["data"].(ServiceHealth)
	require.True(t, ok)
	assert.Equal(t, "not_ready", data.Status)
}

func TestHealthService_ReadinessCheck_ArtifactsPresent(t *testing.T) {
	paths, svc := newHealthEnv(t)
	path := paths.GetArtifactPath(report.GoalkeeperArtifactFile)
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	status := svc.ReadinessCheck(context.Background())
	artifacts, ok := status.Services["artifacts"].(ServiceHealth)
	require.True(t, ok)
	assert.Equal(t, "artifacts present", artifacts.Message)
}

func TestHealthService_Version(t *testing.T) {
	_, svc := newHealthEnv(t)

	info := svc.Version()
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "https://example.com/pitchstats", info["repo_url"])
	assert.Equal(t, "2026-08-01T00:00:00Z", info["build_time"])
	assert.Equal(t, "build-42", info["build_id"])
	assert.Contains(t, info, "go_version")
	assert.Contains(t, info, "start_time")
}

func TestHealthService_Version_WithoutBuildInfo(t *testing.T) {
	svc := NewHealthService("dev", "", nil, nil, nil, testutil.NewTestLogger(t))

	info := svc.Version()
	assert.NotContains(t, info, "build_time")
	assert.NotContains(t, info, "build_id")
}

func TestHealthService_SystemStats(t *testing.T) {
	paths, svc := newHealthEnv(t)

	require.NoError(t, os.WriteFile(filepath.Join(paths.DataDir, "keepers.csv"), []byte("Player,Season\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(paths.DataDir, "heights.csv"), []byte("Name,Height\n"), 0o644))
	require.NoError(t, os.WriteFile(paths.GetArtifactPath(report.GoalkeeperArtifactFile), []byte("{}"), 0o644))

	stats, err := svc.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DataFiles)
	assert.Positive(t, stats.DataSizeBytes)
	assert.Equal(t, 1, stats.ArtifactFiles)
	assert.Zero(t, stats.WebSocketClients)
	assert.Zero(t, stats.ActiveRuns)
	assert.NotEmpty(t, stats.GoVersion)
	assert.GreaterOrEqual(t, stats.UptimeSeconds, 0.0)
}

func TestHealthService_SystemStats_NilDependencies(t *testing.T) {
	svc := NewHealthService("dev", "", nil, nil, nil, testutil.NewTestLogger(t))

	stats, err := svc.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.DataFiles)
	assert.Zero(t, stats.WebSocketClients)
	assert.Zero(t, stats.ActiveRuns)
}

func TestHealthService_GetDetailedHealth(t *testing.T) {
	_, svc := newHealthEnv(t)

	detail := svc.GetDetailedHealth(context.Background())
	assert.Contains(t, detail, "health")
	assert.Contains(t, detail, "readiness")
	assert.Contains(t, detail, "liveness")
	assert.Contains(t, detail, "stats")
}
