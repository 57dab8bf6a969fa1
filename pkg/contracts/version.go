// Package contracts declares the versioned surface shared between the
// server, the CLI tools, and the dashboard: API versions, artifact schema
// versions, and build metadata.
package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the release version of the application.
	Version = "1.2.0"

	// DataFormatVersion versions the study artifact schema. Readers refuse
	// artifacts written under a different major schema.
	DataFormatVersion = "v1"

	// APIVersion versions the HTTP API and the WebSocket message contracts.
	APIVersion = "v1"
)

// Populated at build time via -ldflags; "unknown" in dev builds.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is the build identity served by the version endpoint.
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	DataFormat   string `json:"data_format"`
	APIVersion   string `json:"api_version"`
}

// GetVersionInfo collects the static version constants and the runtime
// build facts into one struct.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		DataFormat:   DataFormatVersion,
		APIVersion:   APIVersion,
	}
}

// GetFullVersionString renders the version line printed by the binaries'
// -version flag.
func GetFullVersionString() string {
	info := GetVersionInfo()
	return fmt.Sprintf("pitchstats v%s (built %s, commit %s, %s %s/%s)",
		info.Version, info.BuildTime, info.GitCommit,
		info.GoVersion, info.OS, info.Architecture)
}
