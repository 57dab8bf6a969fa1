package http

import (
	"context"

	"pitchstats/internal/insights"
	"pitchstats/pkg/contracts/domain"
)

// ResultsServiceInterface defines the interface for artifact read access
type ResultsServiceInterface interface {
	GoalkeeperResults(ctx context.Context) (*domain.GoalkeeperArtifact, error)
	VARImpactResults(ctx context.Context) (*domain.VARImpactArtifact, error)
	GoalkeeperAggregates(ctx context.Context) ([]domain.KeeperRecord, error)
	VARImpactAggregates(ctx context.Context) ([]domain.TeamRecord, error)
	GenerateNarrative(ctx context.Context, studyName string, kind insights.NarrativeKind) (*insights.Narrative, error)
}
