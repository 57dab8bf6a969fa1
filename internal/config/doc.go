// Package config provides centralized configuration management for the
// pitchstats binaries. It handles loading configuration from multiple
// sources, validation, and path resolution.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of
// precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern PITCH_* for namespacing:
//
//	PITCH_SERVER_PORT=8080
//	PITCH_LOGGING_LEVEL=debug
//	PITCH_PATHS_ARTIFACTS_DIR=/var/lib/pitchstats/artifacts
//	PITCH_OPENAI_API_KEY=sk-...
//
// # Path Management
//
// File locations resolve through the Paths type, relative to the
// executable directory or to PITCH_BASE_DIR when set:
//
//	paths, err := cfg.ResolvePaths()
//	artifact := paths.GetArtifactPath("goalkeeper.json")
//
// Ingest source declarations (which provider files feed which study) are
// part of the YAML file only; they have no environment form.
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    ...
//	}
package config
