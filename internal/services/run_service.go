package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pitchstats/internal/config"
	"pitchstats/internal/dataset"
	"pitchstats/internal/infrastructure"
	"pitchstats/internal/ingest"
	"pitchstats/internal/insights"
	"pitchstats/internal/report"
	"pitchstats/internal/study"
	api "pitchstats/pkg/contracts/api/v1"
	"pitchstats/pkg/contracts/domain"
	"pitchstats/pkg/contracts/events"
)

// DefaultRunPageSize bounds ListRuns responses when the request does not
// state a page size.
const DefaultRunPageSize = 20

// RunHub is the broadcast surface the run service needs from the WebSocket
// layer.
type RunHub interface {
	BroadcastRunSnapshot(snap events.RunSnapshot, traceID string)
	BroadcastError(code, message string, fatal bool)
}

// RunService owns the run registry: it starts study executions, walks their
// stages, and broadcasts every state transition. Runs live in memory for the
// life of the process; the artifacts on disk are the durable output.
type RunService struct {
	cfg        *config.Config
	paths      *config.Paths
	studyCfg   study.Config
	hub        RunHub
	narratives *insights.Client
	metrics    *infrastructure.BusinessMetrics
	logger     *slog.Logger

	mu    sync.RWMutex
	runs  map[string]*runState
	order []string
}

// runState pairs a run with the cancel handle of its execution goroutine.
type runState struct {
	run     *domain.Run
	cancel  context.CancelFunc
	traceID string
}

// studyInputs carries one study's loaded source rows between stages.
type studyInputs struct {
	performance []dataset.PerformanceRecord
	attributes  []dataset.AttributeRecord
}

// studyFindings bundles whatever studies the run executed.
type studyFindings struct {
	goalkeeper *study.GoalkeeperFindings
	varImpact  *study.VARImpactFindings
}

// studyArtifacts bundles the formatted artifacts written by the report stage.
type studyArtifacts struct {
	goalkeeper *domain.GoalkeeperArtifact
	varImpact  *domain.VARImpactArtifact
}

// NewRunService creates the run service. The narratives client may be nil;
// runs requesting narratives are then rejected up front.
func NewRunService(cfg *config.Config, paths *config.Paths, studyCfg study.Config, hub RunHub, narratives *insights.Client, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &RunService{
		cfg:        cfg,
		paths:      paths,
		studyCfg:   studyCfg,
		hub:        hub,
		narratives: narratives,
		metrics:    metrics,
		logger:     logger.With(slog.String("component", "run_service")),
		runs:       make(map[string]*runState),
	}
}

// StartRun registers a new run and launches its execution. The returned run
// is a snapshot; poll GetRun or subscribe over WebSocket for progress. A
// study can only have one active run at a time.
func (s *RunService) StartRun(ctx context.Context, req api.RunStartRequest) (*domain.Run, error) {
	studies, err := resolveStudies(req.Study)
	if err != nil {
		return nil, err
	}
	if req.WithNarratives && s.narratives == nil {
		return nil, ErrNarrativesDisabled
	}

	run := &domain.Run{
		ID:        uuid.New().String(),
		Study:     req.Study,
		Status:    domain.RunStatusPending,
		Stages:    buildStages(req.WithNarratives),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	for _, existing := range s.runs {
		if existing.run.Status.Terminal() {
			continue
		}
		if studiesOverlap(existing.run.Study, req.Study) {
			id := existing.run.ID
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s (run %s)", ErrRunConflict, req.Study, id)
		}
	}

	// Runs started outside an HTTP request still get a trace ID so their
	// log lines and snapshots correlate.
	traceID := infrastructure.GetTraceID(infrastructure.EnsureTraceID(ctx))
	execCtx, cancel := context.WithCancel(infrastructure.WithTraceID(context.Background(), traceID))
	state := &runState{run: run, cancel: cancel, traceID: traceID}
	s.runs[run.ID] = state
	s.order = append(s.order, run.ID)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "run accepted",
		slog.String("run_id", run.ID),
		slog.String("study", req.Study),
		slog.Bool("fail_fast", req.FailFast),
		slog.Bool("with_narratives", req.WithNarratives),
	)

	go s.execute(execCtx, state, req, studies)

	return s.GetRun(ctx, run.ID)
}

// StopRun requests cancellation of an active run. The run transitions to
// cancelled once its goroutine observes the cancel, not synchronously.
func (s *RunService) StopRun(ctx context.Context, runID string) error {
	s.mu.RLock()
	state, ok := s.runs[runID]
	var status domain.RunStatus
	if ok {
		status = state.run.Status
	}
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if status.Terminal() {
		return fmt.Errorf("%w: run %s is already %s", ErrRunNotRunning, runID, status)
	}

	s.logger.InfoContext(ctx, "run cancellation requested",
		slog.String("run_id", runID),
	)
	state.cancel()
	return nil
}

// GetRun returns a copy of the run; callers never see later mutations.
func (s *RunService) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return copyRun(state.run), nil
}

// ListRuns returns runs newest first, filtered by the request's status and
// study and cut to the requested page.
func (s *RunService) ListRuns(ctx context.Context, req api.RunListRequest) ([]*domain.Run, error) {
	s.mu.RLock()
	runs := make([]*domain.Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		state := s.runs[s.order[i]]
		if req.Status != "" && string(state.run.Status) != req.Status {
			continue
		}
		if req.Study != "" && state.run.Study != req.Study {
			continue
		}
		runs = append(runs, copyRun(state.run))
	}
	s.mu.RUnlock()

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = DefaultRunPageSize
	}
	offset := (page - 1) * pageSize
	if offset >= len(runs) {
		return []*domain.Run{}, nil
	}
	if end := offset + pageSize; end < len(runs) {
		return runs[offset:end], nil
	}
	return runs[offset:], nil
}

// ActiveRunCount returns the number of non-terminal runs.
func (s *RunService) ActiveRunCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, state := range s.runs {
		if !state.run.Status.Terminal() {
			n++
		}
	}
	return n
}

// CancelAll cancels every active run and returns how many were signalled.
// Used during shutdown.
func (s *RunService) CancelAll(ctx context.Context) int {
	s.mu.RLock()
	var cancels []context.CancelFunc
	for _, state := range s.runs {
		if !state.run.Status.Terminal() {
			cancels = append(cancels, state.cancel)
		}
	}
	s.mu.RUnlock()

	for _, cancel := range cancels {
		cancel()
	}
	if len(cancels) > 0 {
		s.logger.InfoContext(ctx, "cancelled active runs",
			slog.Int("count", len(cancels)),
		)
	}
	return len(cancels)
}

// execute drives one run from pending to a terminal status. It owns every
// mutation of the run after StartRun returns.
func (s *RunService) execute(ctx context.Context, state *runState, req api.RunStartRequest, studies []string) {
	run := state.run
	start := time.Now()

	s.transition(state, func(r *domain.Run) {
		now := time.Now().UTC()
		r.Status = domain.RunStatusRunning
		r.StartedAt = &now
	})

	infrastructure.RecordActiveRunChange(ctx, s.metrics, 1, run.Study)
	defer infrastructure.RecordActiveRunChange(ctx, s.metrics, -1, run.Study)

	err := s.runStages(ctx, state, req, studies)

	duration := time.Since(start)
	switch {
	case err == nil:
		s.transition(state, func(r *domain.Run) {
			now := time.Now().UTC()
			r.Status = domain.RunStatusCompleted
			r.CompletedAt = &now
		})
		s.logger.InfoContext(ctx, "run completed",
			slog.String("run_id", run.ID),
			slog.String("study", run.Study),
			slog.Duration("duration", duration),
		)
	case errors.Is(err, context.Canceled):
		s.transition(state, func(r *domain.Run) {
			now := time.Now().UTC()
			r.Status = domain.RunStatusCancelled
			r.CompletedAt = &now
			r.Error = "run cancelled"
		})
		infrastructure.RecordRunCancellation(ctx, s.metrics, run.ID, run.Study, "requested")
		s.logger.WarnContext(ctx, "run cancelled",
			slog.String("run_id", run.ID),
			slog.String("study", run.Study),
		)
	default:
		s.transition(state, func(r *domain.Run) {
			now := time.Now().UTC()
			r.Status = domain.RunStatusFailed
			r.CompletedAt = &now
			r.Error = err.Error()
		})
		if s.hub != nil {
			s.hub.BroadcastError("RUN_FAILED", err.Error(), true)
		}
		s.logger.ErrorContext(ctx, "run failed",
			slog.String("run_id", run.ID),
			slog.String("study", run.Study),
			slog.String("error", err.Error()),
		)
	}

	infrastructure.RecordRunMetrics(ctx, s.metrics, run.ID, run.Study, duration, err == nil, err)
}

func (s *RunService) runStages(ctx context.Context, state *runState, req api.RunStartRequest, studies []string) error {
	inputs, err := s.stageIngest(ctx, state, studies)
	if err != nil {
		return err
	}

	findings, err := s.stageAnalyze(ctx, state, req, studies, inputs)
	if err != nil {
		return err
	}

	artifacts, err := s.stageReport(ctx, state, findings)
	if err != nil {
		return err
	}

	if req.WithNarratives {
		return s.stageNarrative(ctx, state, artifacts)
	}
	return nil
}

// stageIngest loads every declared source for the selected studies.
func (s *RunService) stageIngest(ctx context.Context, state *runState, studies []string) (map[string]studyInputs, error) {
	s.beginStage(ctx, state, domain.StageIDIngest)

	inputs := make(map[string]studyInputs, len(studies))
	var totalPerformance, totalAttributes int

	for _, name := range studies {
		sources := s.sourcesFor(name)
		if len(sources.Performance) == 0 {
			err := fmt.Errorf("%w: %s", ErrNoSources, name)
			s.endStage(ctx, state, domain.StageIDIngest, "", err)
			return nil, err
		}

		loader := ingest.NewLoader(sources.Performance, sources.Attributes, s.logger)
		performance, attributes, err := loader.Load(ctx)
		if err != nil {
			err = fmt.Errorf("ingest %s: %w", name, err)
			s.endStage(ctx, state, domain.StageIDIngest, "", err)
			return nil, err
		}

		infrastructure.RecordIngestMetrics(ctx, s.metrics, name, int64(len(performance)+len(attributes)), 0)
		inputs[name] = studyInputs{performance: performance, attributes: attributes}
		totalPerformance += len(performance)
		totalAttributes += len(attributes)
	}

	detail := fmt.Sprintf("%d performance rows, %d attribute rows", totalPerformance, totalAttributes)
	s.endStage(ctx, state, domain.StageIDIngest, detail, nil)
	return inputs, nil
}

// stageAnalyze runs each selected study over its loaded inputs and stamps
// the run fingerprint.
func (s *RunService) stageAnalyze(ctx context.Context, state *runState, req api.RunStartRequest, studies []string, inputs map[string]studyInputs) (*studyFindings, error) {
	s.beginStage(ctx, state, domain.StageIDAnalyze)

	studyCfg := s.studyCfg
	if req.FailFast {
		studyCfg.Goalkeeper.FailFast = true
		studyCfg.VARImpact.FailFast = true
	}

	findings := &studyFindings{}
	var fingerprints []string

	for _, name := range studies {
		in := inputs[name]
		switch name {
		case study.StudyGoalkeeper:
			gk, err := study.NewGoalkeeperStudy(studyCfg.Goalkeeper, s.logger).Run(ctx, in.performance, in.attributes)
			if err != nil {
				err = fmt.Errorf("analyze %s: %w", name, err)
				s.endStage(ctx, state, domain.StageIDAnalyze, "", err)
				return nil, err
			}
			findings.goalkeeper = gk
			fingerprints = append(fingerprints, gk.Fingerprint)
			infrastructure.RecordEntityMatchMetrics(ctx, s.metrics, name, confidenceCounts(gk.Aggregates))
		case study.StudyVARImpact:
			vi, err := study.NewVARImpactStudy(studyCfg.VARImpact, s.logger).Run(ctx, in.performance)
			if err != nil {
				err = fmt.Errorf("analyze %s: %w", name, err)
				s.endStage(ctx, state, domain.StageIDAnalyze, "", err)
				return nil, err
			}
			findings.varImpact = vi
			fingerprints = append(fingerprints, vi.Fingerprint)
			counts := confidenceCounts(vi.BaselineAggregates)
			for k, v := range confidenceCounts(vi.ComparisonAggregates) {
				counts[k] += v
			}
			infrastructure.RecordEntityMatchMetrics(ctx, s.metrics, name, counts)
		}
	}

	// An all-studies run joins the per-study digests; a rerun over the same
	// inputs reproduces the joined value just as it does each part.
	s.transition(state, func(r *domain.Run) {
		r.Fingerprint = strings.Join(fingerprints, "+")
	})

	s.endStage(ctx, state, domain.StageIDAnalyze, analyzeDetail(findings), nil)
	return findings, nil
}

// stageReport formats findings into wire artifacts and writes them to the
// artifacts directory.
func (s *RunService) stageReport(ctx context.Context, state *runState, findings *studyFindings) (*studyArtifacts, error) {
	s.beginStage(ctx, state, domain.StageIDReport)

	formatter := report.NewFormatter(s.logger)
	writer := report.NewWriter(s.paths.ArtifactsDir, s.logger)
	artifacts := &studyArtifacts{}
	var files []string

	if findings.goalkeeper != nil {
		info := report.RunInfoFor(state.run.ID, study.StudyGoalkeeper, findings.goalkeeper.Fingerprint)
		art := formatter.GoalkeeperArtifact(info, findings.goalkeeper)
		if err := writer.WriteGoalkeeperArtifact(art); err != nil {
			s.endStage(ctx, state, domain.StageIDReport, "", err)
			return nil, err
		}
		artifacts.goalkeeper = art
		files = append(files, report.GoalkeeperArtifactFile, report.GoalkeeperRecordsFile)
	}

	if findings.varImpact != nil {
		info := report.RunInfoFor(state.run.ID, study.StudyVARImpact, findings.varImpact.Fingerprint)
		art := formatter.VARImpactArtifact(info, findings.varImpact)
		if err := writer.WriteVARImpactArtifact(art); err != nil {
			s.endStage(ctx, state, domain.StageIDReport, "", err)
			return nil, err
		}
		artifacts.varImpact = art
		files = append(files, report.VARImpactArtifactFile, report.VARImpactRecordsFile)
	}

	s.endStage(ctx, state, domain.StageIDReport, strings.Join(files, ", "), nil)
	return artifacts, nil
}

// stageNarrative generates an executive summary per written artifact and
// persists each alongside the artifacts.
func (s *RunService) stageNarrative(ctx context.Context, state *runState, artifacts *studyArtifacts) error {
	s.beginStage(ctx, state, domain.StageIDNarrative)

	writer := report.NewWriter(s.paths.ArtifactsDir, s.logger)
	var files []string

	if artifacts.goalkeeper != nil {
		start := time.Now()
		narrative, err := s.narratives.GoalkeeperNarrative(ctx, insights.KindExecutiveSummary, artifacts.goalkeeper)
		infrastructure.RecordNarrativeMetrics(ctx, s.metrics, string(insights.KindExecutiveSummary), time.Since(start), err)
		if err != nil {
			err = fmt.Errorf("goalkeeper narrative: %w", err)
			s.endStage(ctx, state, domain.StageIDNarrative, "", err)
			return err
		}
		if err := writer.WriteJSON(report.GoalkeeperNarrativeFile, narrative); err != nil {
			s.endStage(ctx, state, domain.StageIDNarrative, "", err)
			return err
		}
		files = append(files, report.GoalkeeperNarrativeFile)
	}

	if artifacts.varImpact != nil {
		start := time.Now()
		narrative, err := s.narratives.VARImpactNarrative(ctx, insights.KindExecutiveSummary, artifacts.varImpact)
		infrastructure.RecordNarrativeMetrics(ctx, s.metrics, string(insights.KindExecutiveSummary), time.Since(start), err)
		if err != nil {
			err = fmt.Errorf("var impact narrative: %w", err)
			s.endStage(ctx, state, domain.StageIDNarrative, "", err)
			return err
		}
		if err := writer.WriteJSON(report.VARImpactNarrativeFile, narrative); err != nil {
			s.endStage(ctx, state, domain.StageIDNarrative, "", err)
			return err
		}
		files = append(files, report.VARImpactNarrativeFile)
	}

	s.endStage(ctx, state, domain.StageIDNarrative, strings.Join(files, ", "), nil)
	return nil
}

// transition applies one mutation under the registry lock and broadcasts the
// resulting snapshot.
func (s *RunService) transition(state *runState, mutate func(*domain.Run)) {
	s.mu.Lock()
	mutate(state.run)
	snap := events.SnapshotFromRun(state.run)
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.BroadcastRunSnapshot(snap, state.traceID)
	}
}

func (s *RunService) beginStage(ctx context.Context, state *runState, stageID string) {
	s.transition(state, func(r *domain.Run) {
		if st := findStage(r, stageID); st != nil {
			now := time.Now().UTC()
			st.Status = domain.StageStatusRunning
			st.StartedAt = &now
		}
	})
	s.logger.InfoContext(ctx, "stage started",
		slog.String("run_id", state.run.ID),
		slog.String("stage", stageID),
	)
}

func (s *RunService) endStage(ctx context.Context, state *runState, stageID, detail string, stageErr error) {
	var duration time.Duration
	s.transition(state, func(r *domain.Run) {
		st := findStage(r, stageID)
		if st == nil {
			return
		}
		now := time.Now().UTC()
		st.CompletedAt = &now
		if st.StartedAt != nil {
			duration = now.Sub(*st.StartedAt)
		}
		if stageErr != nil {
			st.Status = domain.StageStatusFailed
			st.Error = stageErr.Error()
			return
		}
		st.Status = domain.StageStatusCompleted
		st.Detail = detail
	})

	infrastructure.RecordStageMetrics(ctx, s.metrics, state.run.ID, stageID, duration, stageErr == nil)

	if stageErr != nil {
		infrastructure.RecordError(ctx, stageErr)
		s.logger.ErrorContext(ctx, "stage failed",
			slog.String("run_id", state.run.ID),
			slog.String("stage", stageID),
			slog.String("error", stageErr.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "stage completed",
		slog.String("run_id", state.run.ID),
		slog.String("stage", stageID),
		slog.Duration("duration", duration),
		slog.String("detail", detail),
	)
}

func (s *RunService) sourcesFor(name string) config.ProviderSources {
	switch name {
	case study.StudyGoalkeeper:
		return s.cfg.Ingest.Goalkeeper
	case study.StudyVARImpact:
		return s.cfg.Ingest.VARImpact
	}
	return config.ProviderSources{}
}

// resolveStudies expands a run's study selector into the concrete studies to
// execute, in a fixed order.
func resolveStudies(name string) ([]string, error) {
	switch name {
	case study.StudyGoalkeeper:
		return []string{study.StudyGoalkeeper}, nil
	case study.StudyVARImpact:
		return []string{study.StudyVARImpact}, nil
	case domain.RunStudyAll:
		return []string{study.StudyGoalkeeper, study.StudyVARImpact}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStudy, name)
}

// studiesOverlap reports whether two study selectors would execute at least
// one study in common.
func studiesOverlap(a, b string) bool {
	return a == b || a == domain.RunStudyAll || b == domain.RunStudyAll
}

func buildStages(withNarratives bool) []domain.Stage {
	stages := []domain.Stage{
		{ID: domain.StageIDIngest, Name: domain.StageNameIngest, Status: domain.StageStatusPending},
		{ID: domain.StageIDAnalyze, Name: domain.StageNameAnalyze, Status: domain.StageStatusPending},
		{ID: domain.StageIDReport, Name: domain.StageNameReport, Status: domain.StageStatusPending},
	}
	if withNarratives {
		stages = append(stages, domain.Stage{
			ID:     domain.StageIDNarrative,
			Name:   domain.StageNameNarrative,
			Status: domain.StageStatusPending,
		})
	}
	return stages
}

func findStage(r *domain.Run, id string) *domain.Stage {
	for i := range r.Stages {
		if r.Stages[i].ID == id {
			return &r.Stages[i]
		}
	}
	return nil
}

// confidenceCounts tallies aggregates by how their identity was resolved,
// feeding the ingest_entities_total instrument.
func confidenceCounts(aggs []dataset.AggregateRecord) map[string]int64 {
	counts := make(map[string]int64, 3)
	for _, agg := range aggs {
		counts[string(agg.Confidence)]++
	}
	return counts
}

func analyzeDetail(f *studyFindings) string {
	var parts []string
	if f.goalkeeper != nil {
		parts = append(parts, fmt.Sprintf("%d keepers (%d with height)", f.goalkeeper.Entities, f.goalkeeper.PairedEntities))
	}
	if f.varImpact != nil {
		parts = append(parts, fmt.Sprintf("%d baseline vs %d comparison teams", f.varImpact.Baseline.Teams, f.varImpact.Comparison.Teams))
	}
	return strings.Join(parts, "; ")
}

func copyRun(r *domain.Run) *domain.Run {
	cp := *r
	cp.Stages = append([]domain.Stage(nil), r.Stages...)
	return &cp
}
