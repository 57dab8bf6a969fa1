package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pitchstats/internal/config"
	"pitchstats/internal/dataset"
	"pitchstats/internal/ingest"
	"pitchstats/internal/report"
	"pitchstats/internal/shared/testutil"
	"pitchstats/internal/study"
	api "pitchstats/pkg/contracts/api/v1"
	"pitchstats/pkg/contracts/domain"
)

// runTestEnv wires a run service over temp directories with fixture CSVs on
// disk for both studies.
type runTestEnv struct {
	cfg   *config.Config
	paths *config.Paths
	hub   *MockRunHub
	svc   *RunService
}

func newRunTestEnv(t *testing.T) *runTestEnv {
	t.Helper()

	base := t.TempDir()
	dataDir := filepath.Join(base, "data")
	artifactsDir := filepath.Join(base, "artifacts")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.MkdirAll(artifactsDir, 0o755))

	cfg := config.Default()
	cfg.Ingest.Goalkeeper = config.ProviderSources{
		Performance: []ingest.PerformanceSource{{
			Path: writeKeeperCSV(t, dataDir),
			Columns: ingest.Columns{
				Entity: "Player",
				Period: "Season",
				Weight: "Min",
				Metrics: map[string]string{
					dataset.MetricSaves:        "Saves",
					dataset.MetricGoalsAgainst: "GA",
					dataset.MetricCleanSheets:  "CS",
					dataset.MetricMatches:      "MP",
					dataset.MetricStarts:       "Starts",
				},
			},
		}},
		Attributes: []ingest.AttributeSource{{
			Path:   writeHeightCSV(t, dataDir),
			Period: "FIFA24",
			Columns: ingest.AttributeColumns{
				Entity: "Name",
				Value:  "Height (cm)",
			},
		}},
	}
	cfg.Ingest.VARImpact = config.ProviderSources{
		Performance: []ingest.PerformanceSource{{
			Path: writeTeamCSV(t, dataDir),
			Columns: ingest.Columns{
				Entity: "Squad",
				Period: "Season",
				Weight: "Min",
				Metrics: map[string]string{
					dataset.MetricYellowCards: "Yellow",
					dataset.MetricRedCards:    "Red",
				},
			},
		}},
	}

	paths := &config.Paths{
		BaseDir:      base,
		DataDir:      dataDir,
		ArtifactsDir: artifactsDir,
		LogsDir:      filepath.Join(base, "logs"),
	}

	hub := new(MockRunHub)
	hub.On("BroadcastRunSnapshot", mock.Anything, mock.Anything).Return()
	hub.On("BroadcastError", mock.Anything, mock.Anything, mock.Anything).Return()

	// The default VAR metric list includes fouls and penalties the fixture
	// never reports; trim to what the CSV carries.
	studyCfg := study.DefaultConfig()
	studyCfg.VARImpact.Metrics = []string{dataset.MetricYellowCards, dataset.MetricRedCards}

	svc := NewRunService(cfg, paths, studyCfg, hub, nil, nil, testutil.NewTestLogger(t))
	return &runTestEnv{cfg: cfg, paths: paths, hub: hub, svc: svc}
}

// writeKeeperCSV writes two seasons for nine keepers whose save percentage
// rises with height.
func writeKeeperCSV(t *testing.T, dir string) string {
	t.Helper()

	keepers := []struct {
		name  string
		saves int
		ga    int
	}{
		{"Bernd Leno", 60, 40},
		{"Robert Sanchez", 62, 38},
		{"David Raya", 63, 37},
		{"Jordan Pickford", 66, 34},
		{"Aaron Ramsdale", 68, 32},
		{"Nick Pope", 70, 30},
		{"Emiliano Martinez", 73, 27},
		{"Ederson Moraes", 74, 26},
		{"Alisson Becker", 76, 24},
	}

	content := "Player,Season,Min,Saves,GA,CS,MP,Starts\n"
	for _, k := range keepers {
		for _, season := range []string{"2022-2023", "2023-2024"} {
			content += fmt.Sprintf("%s,%s,2700,%d,%d,10,30,30\n", k.name, season, k.saves, k.ga)
		}
	}

	path := filepath.Join(dir, "keepers.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeHeightCSV(t *testing.T, dir string) string {
	t.Helper()

	content := "Name,Height (cm)\n" +
		"Bernd Leno,182\n" +
		"Robert Sanchez,184\n" +
		"David Raya,186\n" +
		"Jordan Pickford,188\n" +
		"Aaron Ramsdale,190\n" +
		"Nick Pope,192\n" +
		"Emiliano Martinez,194\n" +
		"Ederson Moraes,196\n" +
		"Alisson Becker,198\n"

	path := filepath.Join(dir, "heights.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeTeamCSV writes discipline rows for four teams spanning both VAR
// cohorts plus one team per cohort that does not cross over.
func writeTeamCSV(t *testing.T, dir string) string {
	t.Helper()

	content := "Squad,Season,Min,Yellow,Red\n"
	pre := []struct {
		name    string
		yellows int
	}{
		{"Arsenal", 55}, {"Chelsea", 60}, {"Everton", 58}, {"Liverpool", 57}, {"Stoke City", 62},
	}
	with := []struct {
		name    string
		yellows int
	}{
		{"Arsenal", 70}, {"Chelsea", 75}, {"Everton", 73}, {"Liverpool", 72}, {"Brentford", 68},
	}
	for _, team := range pre {
		for _, season := range []string{"2016-2017", "2017-2018", "2018-2019"} {
			content += fmt.Sprintf("%s,%s,3420,%d,3\n", team.name, season, team.yellows)
		}
	}
	for _, team := range with {
		for _, season := range []string{"2019-2020", "2020-2021", "2021-2022", "2022-2023", "2023-2024"} {
			content += fmt.Sprintf("%s,%s,3420,%d,3\n", team.name, season, team.yellows)
		}
	}

	path := filepath.Join(dir, "teams.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func waitForTerminal(t *testing.T, svc *RunService, runID string) *domain.Run {
	t.Helper()

	var run *domain.Run
	require.Eventually(t, func() bool {
		r, err := svc.GetRun(context.Background(), runID)
		if err != nil {
			return false
		}
		run = r
		return r.Status.Terminal()
	}, 10*time.Second, 10*time.Millisecond)
	return run
}

func TestResolveStudies(t *testing.T) {
	tests := []struct {
		name    string
		study   string
		want    []string
		wantErr bool
	}{
		{name: "goalkeeper", study: "goalkeeper", want: []string{study.StudyGoalkeeper}},
		{name: "var impact", study: "var_impact", want: []string{study.StudyVARImpact}},
		{name: "all expands in fixed order", study: "all", want: []string{study.StudyGoalkeeper, study.StudyVARImpact}},
		{name: "unknown", study: "possession", wantErr: true},
		{name: "empty", study: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveStudies(tt.study)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnknownStudy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStudiesOverlap(t *testing.T) {
	assert.True(t, studiesOverlap("goalkeeper", "goalkeeper"))
	assert.True(t, studiesOverlap("all", "goalkeeper"))
	assert.True(t, studiesOverlap("var_impact", "all"))
	assert.True(t, studiesOverlap("all", "all"))
	assert.False(t, studiesOverlap("goalkeeper", "var_impact"))
}

func TestBuildStages(t *testing.T) {
	stages := buildStages(false)
	require.Len(t, stages, 3)
	assert.Equal(t, domain.StageIDIngest, stages[0].ID)
	assert.Equal(t, domain.StageIDAnalyze, stages[1].ID)
	assert.Equal(t, domain.StageIDReport, stages[2].ID)
	for _, st := range stages {
		assert.Equal(t, domain.StageStatusPending, st.Status)
	}

	withNarratives := buildStages(true)
	require.Len(t, withNarratives, 4)
	assert.Equal(t, domain.StageIDNarrative, withNarratives[3].ID)
}

func TestRunService_StartRun_UnknownStudy(t *testing.T) {
	env := newRunTestEnv(t)

	_, err := env.svc.StartRun(context.Background(), api.RunStartRequest{Study: "possession"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStudy)
}

func TestRunService_StartRun_NarrativesNotConfigured(t *testing.T) {
	env := newRunTestEnv(t)

	_, err := env.svc.StartRun(context.Background(), api.RunStartRequest{
		Study:          "goalkeeper",
		WithNarratives: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNarrativesDisabled)
}

func TestRunService_StartRun_Conflict(t *testing.T) {
	env := newRunTestEnv(t)

	// Seed an active run directly so the conflict check is deterministic.
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.svc.runs["busy"] = &runState{
		run:    &domain.Run{ID: "busy", Study: study.StudyGoalkeeper, Status: domain.RunStatusRunning},
		cancel: cancel,
	}
	env.svc.order = append(env.svc.order, "busy")

	_, err := env.svc.StartRun(context.Background(), api.RunStartRequest{Study: "goalkeeper"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunConflict)

	// An "all" run overlaps any active study.
	_, err = env.svc.StartRun(context.Background(), api.RunStartRequest{Study: "all"})
	assert.ErrorIs(t, err, ErrRunConflict)

	// The other study is free to run.
	run, err := env.svc.StartRun(context.Background(), api.RunStartRequest{Study: "var_impact"})
	require.NoError(t, err)
	waitForTerminal(t, env.svc, run.ID)
}

func TestRunService_GoalkeeperRun(t *testing.T) {
	env := newRunTestEnv(t)

	run, err := env.svc.StartRun(context.Background(), api.RunStartRequest{Study: "goalkeeper"})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, "goalkeeper", run.Study)
	require.Len(t, run.Stages, 3)

	final := waitForTerminal(t, env.svc, run.ID)
	require.Equal(t, domain.RunStatusCompleted, final.Status, "run error: %s", final.Error)
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.CompletedAt)
	assert.NotEmpty(t, final.Fingerprint)
	assert.NotContains(t, final.Fingerprint, "+")

	for _, st := range final.Stages {
		assert.Equal(t, domain.StageStatusCompleted, st.Status, "stage %s", st.ID)
		assert.NotNil(t, st.StartedAt, "stage %s", st.ID)
		assert.NotNil(t, st.CompletedAt, "stage %s", st.ID)
	}

	ingestStage := final.Stages[0]
	assert.Contains(t, ingestStage.Detail, "18 performance rows")
	assert.Contains(t, ingestStage.Detail, "9 attribute rows")
	assert.Contains(t, final.Stages[1].Detail, "9 keepers")

	// Artifacts landed in the artifacts directory.
	art, err := report.LoadGoalkeeperArtifact(env.paths.GetArtifactPath(report.GoalkeeperArtifactFile))
	require.NoError(t, err)
	assert.Equal(t, run.ID, art.Run.RunID)
	assert.Equal(t, final.Fingerprint, art.Run.Fingerprint)
	assert.Len(t, art.Records, 9)
	assert.FileExists(t, env.paths.GetArtifactPath(report.GoalkeeperRecordsFile))

	env.hub.AssertCalled(t, "BroadcastRunSnapshot", mock.Anything, mock.Anything)
	env.hub.AssertNotCalled(t, "BroadcastError", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunService_AllStudiesRun(t *testing.T) {
	env := newRunTestEnv(t)

	run, err := env.svc.StartRun(context.Background(), api.RunStartRequest{Study: "all"})
	require.NoError(t, err)

	final := waitForTerminal(t, env.svc, run.ID)
	require.Equal(t, domain.RunStatusCompleted, final.Status, "run error: %s", final.Error)

	// Joined per-study digests.
	assert.Contains(t, final.Fingerprint, "+")

	assert.FileExists(t, env.paths.GetArtifactPath(report.GoalkeeperArtifactFile))
	assert.FileExists(t, env.paths.GetArtifactPath(report.VARImpactArtifactFile))
	assert.FileExists(t, env.paths.GetArtifactPath(report.VARImpactRecordsFile))

	art, err := report.LoadVARImpactArtifact(env.paths.GetArtifactPath(report.VARImpactArtifactFile))
	require.NoError(t, err)
	assert.Equal(t, run.ID, art.Run.RunID)
	assert.Equal(t, 5, art.Baseline.Teams)
	assert.Equal(t, 5, art.Comparison.Teams)
}

func TestRunService_MissingSourcesFailsRun(t *testing.T) {
	env := newRunTestEnv(t)
	env.cfg.Ingest.Goalkeeper = config.ProviderSources{}

	run, err := env.svc.StartRun(context.Background(), api.RunStartRequest{Study: "goalkeeper"})
	require.NoError(t, err)

	final := waitForTerminal(t, env.svc, run.ID)
	require.Equal(t, domain.RunStatusFailed, final.Status)
	assert.Contains(t, final.Error, "no ingest sources configured")

	require.Equal(t, domain.StageStatusFailed, final.Stages[0].Status)
	assert.Equal(t, domain.StageStatusPending, final.Stages[1].Status)

	env.hub.AssertCalled(t, "BroadcastError", "RUN_FAILED", mock.Anything, true)
}

func TestRunService_GetRun(t *testing.T) {
	env := newRunTestEnv(t)

	_, err := env.svc.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	run, err := env.svc.StartRun(context.Background(), api.RunStartRequest{Study: "goalkeeper"})
	require.NoError(t, err)
	waitForTerminal(t, env.svc, run.ID)

	// Mutating a returned copy must not touch the registry.
	got, err := env.svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	got.Status = domain.RunStatusPending
	got.Stages[0].Detail = "tampered"

	again, err := env.svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, again.Status)
	assert.NotEqual(t, "tampered", again.Stages[0].Detail)
}

func TestRunService_ListRuns(t *testing.T) {
	env := newRunTestEnv(t)

	seed := []struct {
		id     string
		study  string
		status domain.RunStatus
	}{
		{"run-1", "goalkeeper", domain.RunStatusCompleted},
		{"run-2", "var_impact", domain.RunStatusFailed},
		{"run-3", "goalkeeper", domain.RunStatusCompleted},
	}
	for _, sd := range seed {
		env.svc.runs[sd.id] = &runState{
			run:    &domain.Run{ID: sd.id, Study: sd.study, Status: sd.status},
			cancel: func() {},
		}
		env.svc.order = append(env.svc.order, sd.id)
	}

	t.Run("newest first", func(t *testing.T) {
		runs, err := env.svc.ListRuns(context.Background(), api.RunListRequest{})
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, "run-3", runs[0].ID)
		assert.Equal(t, "run-1", runs[2].ID)
	})

	t.Run("status filter", func(t *testing.T) {
		runs, err := env.svc.ListRuns(context.Background(), api.RunListRequest{Status: "failed"})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-2", runs[0].ID)
	})

	t.Run("study filter", func(t *testing.T) {
		runs, err := env.svc.ListRuns(context.Background(), api.RunListRequest{Study: "goalkeeper"})
		require.NoError(t, err)
		require.Len(t, runs, 2)
	})

	t.Run("pagination", func(t *testing.T) {
		req := api.RunListRequest{}
		req.Page = 2
		req.PageSize = 2
		runs, err := env.svc.ListRuns(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-1", runs[0].ID)
	})

	t.Run("page past the end", func(t *testing.T) {
		req := api.RunListRequest{}
		req.Page = 9
		req.PageSize = 50
		runs, err := env.svc.ListRuns(context.Background(), req)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})
}

func TestRunService_StopRun(t *testing.T) {
	env := newRunTestEnv(t)

	err := env.svc.StopRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	env.svc.runs["done"] = &runState{
		run:    &domain.Run{ID: "done", Study: "goalkeeper", Status: domain.RunStatusCompleted},
		cancel: func() {},
	}
	env.svc.order = append(env.svc.order, "done")
	err = env.svc.StopRun(context.Background(), "done")
	assert.ErrorIs(t, err, ErrRunNotRunning)

	ctx, cancel := context.WithCancel(context.Background())
	env.svc.runs["active"] = &runState{
		run:    &domain.Run{ID: "active", Study: "var_impact", Status: domain.RunStatusRunning},
		cancel: cancel,
	}
	env.svc.order = append(env.svc.order, "active")

	require.NoError(t, env.svc.StopRun(context.Background(), "active"))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestRunService_ActiveRunCountAndCancelAll(t *testing.T) {
	env := newRunTestEnv(t)
	assert.Zero(t, env.svc.ActiveRunCount())

	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	env.svc.runs["a"] = &runState{
		run:    &domain.Run{ID: "a", Study: "goalkeeper", Status: domain.RunStatusRunning},
		cancel: cancelA,
	}
	env.svc.runs["b"] = &runState{
		run:    &domain.Run{ID: "b", Study: "var_impact", Status: domain.RunStatusPending},
		cancel: cancelB,
	}
	env.svc.runs["c"] = &runState{
		run:    &domain.Run{ID: "c", Study: "goalkeeper", Status: domain.RunStatusCancelled},
		cancel: func() {},
	}
	env.svc.order = append(env.svc.order, "a", "b", "c")

	assert.Equal(t, 2, env.svc.ActiveRunCount())

	cancelled := env.svc.CancelAll(context.Background())
	assert.Equal(t, 2, cancelled)
	assert.ErrorIs(t, ctxA.Err(), context.Canceled)
	assert.ErrorIs(t, ctxB.Err(), context.Canceled)
}

func TestRunService_FailFastPropagates(t *testing.T) {
	env := newRunTestEnv(t)

	// Strip the dataset down to two paired keepers; correlation needs three,
	// so a fail-fast run aborts during analysis.
	dataDir := env.paths.DataDir
	tiny := "Player,Season,Min,Saves,GA,CS,MP,Starts\n" +
		"Nick Pope,2022-2023,2700,70,30,10,30,30\n" +
		"Nick Pope,2023-2024,2700,70,30,10,30,30\n" +
		"Alisson Becker,2022-2023,2700,76,24,12,30,30\n" +
		"Alisson Becker,2023-2024,2700,76,24,12,30,30\n"
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "keepers.csv"), []byte(tiny), 0o644))

	heights := "Name,Height (cm)\nNick Pope,192\nAlisson Becker,198\n"
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "heights.csv"), []byte(heights), 0o644))

	run, err := env.svc.StartRun(context.Background(), api.RunStartRequest{
		Study:    "goalkeeper",
		FailFast: true,
	})
	require.NoError(t, err)

	final := waitForTerminal(t, env.svc, run.ID)
	require.Equal(t, domain.RunStatusFailed, final.Status)
	assert.Contains(t, final.Error, "analyze goalkeeper")
	assert.Equal(t, domain.StageStatusFailed, final.Stages[1].Status)

	// The same dataset passes when degenerate results are allowed.
	rerun, err := env.svc.StartRun(context.Background(), api.RunStartRequest{Study: "goalkeeper"})
	require.NoError(t, err)
	refinal := waitForTerminal(t, env.svc, rerun.ID)
	assert.Equal(t, domain.RunStatusCompleted, refinal.Status, "run error: %s", refinal.Error)
}
