package domain

import (
	"time"
)

// Run represents one execution of the study pipeline: ingest, study
// analysis (matching, aggregation, and inference), artifact generation, and
// optionally narrative generation. Runs are kept in memory by the run
// service and broadcast over WebSocket as they progress.
type Run struct {
	ID          string     `json:"id" validate:"required,uuid"`
	Study       string     `json:"study" validate:"required,oneof=goalkeeper var_impact all"`
	Status      RunStatus  `json:"status"`
	Stages      []Stage    `json:"stages"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	// Fingerprint is the BLAKE2b digest of the run's canonical result
	// payload, set once analysis completes.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// RunStudyAll selects every configured study for a single run.
const RunStudyAll = "all"

// RunStatus represents the status of a run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// Stage represents one stage of a run
type Stage struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Status      StageStatus `json:"status"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
	// Detail carries a short human-readable progress note, e.g. row counts.
	Detail string `json:"detail,omitempty"`
}

// StageStatus represents the status of a run stage
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// Stage identifiers. The analyze stage covers identity matching,
// aggregation, and statistical inference as one unit: the studies aggregate
// per cohort internally, so there is no run-level boundary between them.
const (
	StageIDIngest    = "ingest"
	StageIDAnalyze   = "analyze"
	StageIDReport    = "report"
	StageIDNarrative = "narrative"
)

// Stage names
const (
	StageNameIngest    = "Data Ingest"
	StageNameAnalyze   = "Matching & Analysis"
	StageNameReport    = "Artifact Generation"
	StageNameNarrative = "Narrative Generation"
)
