package services

import (
	"context"
	"fmt"
	"log/slog"

	"pitchstats/internal/config"
	apperrors "pitchstats/internal/errors"
	"pitchstats/internal/infrastructure"
	"pitchstats/internal/insights"
	"pitchstats/internal/report"
	"pitchstats/internal/study"
	"pitchstats/pkg/contracts/domain"
)

// ResultsService serves study artifacts from the artifacts directory. Every
// call reads from disk: runs replace artifacts in place and the files are
// small, so no cache sits in between.
type ResultsService struct {
	paths      *config.Paths
	narratives *insights.Client
	logger     *slog.Logger
}

// NewResultsService creates the results service. The narratives client may
// be nil; narrative requests are then rejected.
func NewResultsService(paths *config.Paths, narratives *insights.Client, logger *slog.Logger) *ResultsService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &ResultsService{
		paths:      paths,
		narratives: narratives,
		logger:     logger.With(slog.String("component", "results_service")),
	}
}

// GoalkeeperResults loads the latest goalkeeper artifact.
func (rs *ResultsService) GoalkeeperResults(ctx context.Context) (*domain.GoalkeeperArtifact, error) {
	path := rs.paths.GetArtifactPath(report.GoalkeeperArtifactFile)
	art, err := report.LoadGoalkeeperArtifact(path)
	if err != nil {
		return nil, rs.wrapLoadError(ctx, report.GoalkeeperArtifactFile, err)
	}
	return art, nil
}

// VARImpactResults loads the latest VAR impact artifact.
func (rs *ResultsService) VARImpactResults(ctx context.Context) (*domain.VARImpactArtifact, error) {
	path := rs.paths.GetArtifactPath(report.VARImpactArtifactFile)
	art, err := report.LoadVARImpactArtifact(path)
	if err != nil {
		return nil, rs.wrapLoadError(ctx, report.VARImpactArtifactFile, err)
	}
	return art, nil
}

// GoalkeeperAggregates returns the per-keeper records of the latest
// goalkeeper artifact.
func (rs *ResultsService) GoalkeeperAggregates(ctx context.Context) ([]domain.KeeperRecord, error) {
	art, err := rs.GoalkeeperResults(ctx)
	if err != nil {
		return nil, err
	}
	return art.Records, nil
}

// VARImpactAggregates returns the per-team cohort records of the latest VAR
// impact artifact.
func (rs *ResultsService) VARImpactAggregates(ctx context.Context) ([]domain.TeamRecord, error) {
	art, err := rs.VARImpactResults(ctx)
	if err != nil {
		return nil, err
	}
	return art.Records, nil
}

// GenerateNarrative writes a fresh narrative of the given kind over the
// latest artifact of the named study.
func (rs *ResultsService) GenerateNarrative(ctx context.Context, studyName string, kind insights.NarrativeKind) (*insights.Narrative, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNarrativeKind, kind)
	}

	switch studyName {
	case study.StudyGoalkeeper, study.StudyVARImpact:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStudy, studyName)
	}

	if rs.narratives == nil {
		return nil, ErrNarrativesDisabled
	}

	rs.logger.InfoContext(ctx, "narrative requested",
		slog.String("study", studyName),
		slog.String("kind", string(kind)),
	)

	if studyName == study.StudyGoalkeeper {
		art, err := rs.GoalkeeperResults(ctx)
		if err != nil {
			return nil, err
		}
		return rs.narratives.GoalkeeperNarrative(ctx, kind, art)
	}

	art, err := rs.VARImpactResults(ctx)
	if err != nil {
		return nil, err
	}
	return rs.narratives.VARImpactNarrative(ctx, kind, art)
}

func (rs *ResultsService) wrapLoadError(ctx context.Context, name string, err error) error {
	if apperrors.IsType(err, apperrors.ErrTypeNotFound) {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	rs.logger.ErrorContext(ctx, "artifact load failed",
		slog.String("artifact", name),
		slog.String("error", err.Error()),
	)
	return err
}
