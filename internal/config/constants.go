package config

import "time"

// Application constants shared by every binary.
const (
	// Application Info
	AppName   = "PitchStats"
	AppVendor = "pitchstats"

	// Environment
	EnvPrefix  = "PITCH"
	EnvBaseDir = "PITCH_BASE_DIR"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// Run Timeouts
	DefaultRunTimeout = 15 * time.Minute

	// File Paths (relative to the base directory)
	DefaultDataDir         = "data"
	DefaultArtifactsDir    = "artifacts"
	DefaultLogsDir         = "logs"
	DefaultWebDir          = "web"
	DefaultStudyConfigFile = "config/studies.yaml"
)
