package events

import (
	"time"

	"pitchstats/pkg/contracts/domain"
)

// RunSnapshot is the payload of every run:snapshot message. It is a full
// projection of the run's state so clients never need to stitch deltas.
type RunSnapshot struct {
	RunID        string          `json:"run_id"`
	Study        string          `json:"study"`
	Status       string          `json:"status"` // pending|running|completed|failed|cancelled
	Progress     int             `json:"progress"`
	CurrentStage string          `json:"current_stage,omitempty"`
	Stages       []StageSnapshot `json:"stages"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Error        string          `json:"error,omitempty"`
	Fingerprint  string          `json:"fingerprint,omitempty"`
}

// StageSnapshot represents the state of a single run stage
type StageSnapshot struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"` // pending|running|completed|failed|skipped
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SnapshotFromRun projects a run into its wire snapshot. Progress is the
// share of terminal stages, scaled to 0-100.
func SnapshotFromRun(run *domain.Run) RunSnapshot {
	snap := RunSnapshot{
		RunID:       run.ID,
		Study:       run.Study,
		Status:      string(run.Status),
		Stages:      make([]StageSnapshot, 0, len(run.Stages)),
		CreatedAt:   run.CreatedAt,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
		Fingerprint: run.Fingerprint,
	}

	done := 0
	for _, stage := range run.Stages {
		snap.Stages = append(snap.Stages, StageSnapshot{
			ID:     stage.ID,
			Name:   stage.Name,
			Status: string(stage.Status),
			Detail: stage.Detail,
			Error:  stage.Error,
		})
		switch stage.Status {
		case domain.StageStatusCompleted, domain.StageStatusFailed, domain.StageStatusSkipped:
			done++
		case domain.StageStatusRunning:
			snap.CurrentStage = stage.Name
		}
	}

	if n := len(run.Stages); n > 0 {
		snap.Progress = done * 100 / n
	}
	if run.Status.Terminal() {
		snap.Progress = 100
	}
	return snap
}
