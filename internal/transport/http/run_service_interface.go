package http

import (
	"context"

	api "pitchstats/pkg/contracts/api/v1"
	"pitchstats/pkg/contracts/domain"
)

// RunServiceInterface defines the interface for the run service
type RunServiceInterface interface {
	StartRun(ctx context.Context, req api.RunStartRequest) (*domain.Run, error)
	StopRun(ctx context.Context, runID string) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, req api.RunListRequest) ([]*domain.Run, error)
}
