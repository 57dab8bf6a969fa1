package services

import "errors"

// Run registry errors
var (
	ErrRunNotFound   = errors.New("run not found")
	ErrRunConflict   = errors.New("a run is already active for this study")
	ErrRunNotRunning = errors.New("run is not running")
	ErrUnknownStudy  = errors.New("unknown study")
	ErrNoSources     = errors.New("no ingest sources configured")
)

// Artifact errors
var (
	ErrArtifactNotFound = errors.New("artifact not found")
)

// Narrative errors
var (
	ErrNarrativesDisabled   = errors.New("narrative generation is not configured")
	ErrUnknownNarrativeKind = errors.New("unknown narrative kind")
)
