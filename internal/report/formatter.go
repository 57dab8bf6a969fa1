package report

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pitchstats/internal/dataset"
	"pitchstats/internal/stats"
	"pitchstats/internal/study"
	"pitchstats/pkg/contracts/domain"
)

// Formatter maps study findings onto the wire contracts in
// pkg/contracts/domain. It performs no inference of its own.
type Formatter struct {
	logger *slog.Logger
}

// NewFormatter creates a formatter. A nil logger falls back to the default.
func NewFormatter(logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{
		logger: logger.With(slog.String("component", "report")),
	}
}

// NewRunInfo stamps fresh run metadata for an artifact. RunID and
// GeneratedAt are the only non-deterministic parts of an artifact; the
// fingerprint is what reruns are compared on.
func NewRunInfo(studyName, fingerprint string) domain.RunInfo {
	return RunInfoFor(uuid.New().String(), studyName, fingerprint)
}

// RunInfoFor stamps artifact metadata under an existing run ID, so artifacts
// written by the run service carry the same ID the API reports.
func RunInfoFor(runID, studyName, fingerprint string) domain.RunInfo {
	return domain.RunInfo{
		RunID:         runID,
		Study:         studyName,
		GeneratedAt:   time.Now().UTC(),
		SchemaVersion: domain.ArtifactSchemaVersion,
		Fingerprint:   fingerprint,
	}
}

// GoalkeeperArtifact projects goalkeeper findings into the wire artifact.
func (f *Formatter) GoalkeeperArtifact(run domain.RunInfo, findings *study.GoalkeeperFindings) *domain.GoalkeeperArtifact {
	art := &domain.GoalkeeperArtifact{
		Run:            run,
		Entities:       findings.Entities,
		PairedEntities: findings.PairedEntities,
		Records:        f.KeeperRecords(findings),
		Terciles:       make([]domain.TercileRecord, 0, len(findings.Terciles)),
		ANOVA:          wireResult(findings.ANOVA),
		Outliers:       wireOutliers(findings.Outliers, findings.OutlierEntities),
		HeightSummary:  wireSummary(findings.HeightSummary),
		SavePctSummary: wireSummary(findings.SavePctSummary),
		Warnings:       findings.Warnings,
	}

	for _, c := range findings.Correlations {
		art.Correlations = append(art.Correlations, domain.MetricResult{
			Metric: c.Metric,
			Result: wireResult(c.Result),
		})
	}
	for _, tc := range findings.Terciles {
		art.Terciles = append(art.Terciles, domain.TercileRecord{
			Bucket:       tc.Name,
			N:            tc.N,
			MeanHeightCM: tc.MeanHeight,
			MeanSavePct:  tc.MeanSavePct,
		})
	}
	for _, tp := range findings.TopPerformers {
		art.TopPerformers = append(art.TopPerformers, domain.TopKeeper{
			CanonicalID:  tp.CanonicalID,
			PlayerName:   tp.EntityName,
			HeightCM:     copyFloat(tp.HeightCM),
			SavePct:      tp.SavePct,
			Matches:      tp.Matches,
			TotalMinutes: tp.Minutes,
		})
	}

	f.logger.Debug("goalkeeper artifact formatted",
		slog.String("run_id", run.RunID),
		slog.Int("records", len(art.Records)),
	)
	return art
}

// KeeperRecords projects each aggregate into a keeper wire record: per-90
// scaling, ratio composition from the summed totals, tercile assignment and
// outlier flag.
func (f *Formatter) KeeperRecords(findings *study.GoalkeeperFindings) []domain.KeeperRecord {
	outliers := make(map[string]bool, len(findings.OutlierCanonicalIDs))
	for _, id := range findings.OutlierCanonicalIDs {
		outliers[id] = true
	}

	records := make([]domain.KeeperRecord, 0, len(findings.Aggregates))
	for _, rec := range findings.Aggregates {
		kr := domain.KeeperRecord{
			CanonicalID:     rec.CanonicalID,
			PlayerName:      rec.EntityName,
			MatchConfidence: string(rec.Confidence),
			HeightCM:        copyFloat(rec.AttributeValue),
			Seasons:         rec.PeriodCount,
			TotalMinutes:    rec.TotalSampleWeight,
			HeightBucket:    findings.TercileAssignments[rec.CanonicalID],
			Outlier:         outliers[rec.CanonicalID],
		}

		kr.Matches, _ = rec.Total(dataset.MetricMatches)
		kr.Starts, _ = rec.Total(dataset.MetricStarts)
		kr.SavesTotal, _ = rec.Total(dataset.MetricSaves)
		kr.GoalsAgainstTotal, _ = rec.Total(dataset.MetricGoalsAgainst)
		kr.CleanSheetsTotal, _ = rec.Total(dataset.MetricCleanSheets)

		kr.SavePct = ratioPtr(rec, dataset.MetricSaves, dataset.MetricGoalsAgainst)
		kr.CleanSheetRate = cleanSheetRatePtr(rec)
		kr.SavesPer90 = per90Ptr(rec, dataset.MetricSaves)
		kr.GoalsAgainstPer90 = per90Ptr(rec, dataset.MetricGoalsAgainst)

		records = append(records, kr)
	}
	return records
}

// VARImpactArtifact projects VAR findings into the wire artifact. Records
// carry both cohorts, baseline first, each in canonical order.
func (f *Formatter) VARImpactArtifact(run domain.RunInfo, findings *study.VARImpactFindings) *domain.VARImpactArtifact {
	art := &domain.VARImpactArtifact{
		Run:        run,
		Baseline:   wireCohort(findings.Baseline),
		Comparison: wireCohort(findings.Comparison),
		Warnings:   findings.Warnings,
	}

	art.Records = append(art.Records,
		f.TeamRecords(findings.Baseline.Name, findings.BaselineAggregates)...)
	art.Records = append(art.Records,
		f.TeamRecords(findings.Comparison.Name, findings.ComparisonAggregates)...)

	for _, mc := range findings.Metrics {
		cmp := domain.MetricComparisonRecord{
			Metric:                 mc.Metric,
			BaselineDistribution:   wireSummary(mc.BaselineSummary),
			ComparisonDistribution: wireSummary(mc.ComparisonSummary),
			TTest:                  wireResult(mc.TTest),
			EffectSize:             wireResult(mc.EffectSize),
			PercentChange:          wireResult(mc.PercentChange),
			BaselineCV:             wireResult(mc.BaselineCV),
			ComparisonCV:           wireResult(mc.ComparisonCV),
		}
		// A mean over zero teams is absence, not zero.
		if mc.BaselineSummary.N > 0 {
			cmp.BaselineMeanPer90 = ptr(mc.BaselineMean)
		}
		if mc.ComparisonSummary.N > 0 {
			cmp.ComparisonMeanPer90 = ptr(mc.ComparisonMean)
		}
		art.Comparisons = append(art.Comparisons, cmp)
	}

	for _, td := range findings.TeamDeltas {
		deltas := make(map[string]float64, len(td.Deltas))
		for k, v := range td.Deltas {
			deltas[k] = v
		}
		art.TeamDeltas = append(art.TeamDeltas, domain.TeamDeltaRecord{
			CanonicalID: td.CanonicalID,
			TeamName:    td.EntityName,
			DeltasPer90: deltas,
		})
	}

	f.logger.Debug("var impact artifact formatted",
		slog.String("run_id", run.RunID),
		slog.Int("records", len(art.Records)),
	)
	return art
}

// TeamRecords projects one cohort's aggregates into team wire records.
func (f *Formatter) TeamRecords(cohort string, aggs []dataset.AggregateRecord) []domain.TeamRecord {
	records := make([]domain.TeamRecord, 0, len(aggs))
	for _, rec := range aggs {
		records = append(records, domain.TeamRecord{
			CanonicalID:            rec.CanonicalID,
			TeamName:               rec.EntityName,
			Cohort:                 cohort,
			Seasons:                rec.PeriodCount,
			TotalMinutes:           rec.TotalSampleWeight,
			YellowCardsPer90:       per90Ptr(rec, dataset.MetricYellowCards),
			RedCardsPer90:          per90Ptr(rec, dataset.MetricRedCards),
			FoulsCommittedPer90:    per90Ptr(rec, dataset.MetricFoulsCommitted),
			PenaltiesWonPer90:      per90Ptr(rec, dataset.MetricPenaltiesWon),
			PenaltiesConcededPer90: per90Ptr(rec, dataset.MetricPenaltiesConceded),
		})
	}
	return records
}

// wireResult copies a stats result onto the wire shape and attaches the
// display verdicts.
func wireResult(r stats.Result) domain.StudyResult {
	out := domain.StudyResult{
		Procedure:   r.Procedure,
		Statistic:   copyFloat(r.Statistic),
		PValue:      copyFloat(r.PValue),
		EffectSize:  copyFloat(r.EffectSize),
		SampleSizes: r.SampleSizes,
		Degenerate:  r.Degenerate,
		Reason:      r.Reason,
		Warnings:    r.Warnings,
		Significant: r.Significant(),
	}
	if r.Degenerate {
		return out
	}
	switch r.Procedure {
	case stats.ProcedurePearson:
		if r.Statistic != nil {
			out.Interpretation = stats.InterpretCorrelation(*r.Statistic)
		}
	case stats.ProcedureCohenD:
		if r.EffectSize != nil {
			out.Interpretation = stats.InterpretEffectSize(*r.EffectSize)
		}
	}
	return out
}

func wireOutliers(rep stats.OutlierReport, players []string) domain.OutlierReport {
	out := domain.OutlierReport{
		Result:  wireResult(rep.Result),
		Players: players,
	}
	if out.Players == nil {
		out.Players = []string{}
	}
	if !rep.Degenerate {
		out.Q1 = ptr(rep.Q1)
		out.Q3 = ptr(rep.Q3)
		out.IQR = ptr(rep.IQR)
		out.LowerFence = ptr(rep.LowerFence)
		out.UpperFence = ptr(rep.UpperFence)
	}
	return out
}

func wireSummary(s stats.Summary) domain.DistributionSummary {
	return domain.DistributionSummary{
		N:      s.N,
		Mean:   s.Mean,
		Median: s.Median,
		StdDev: s.StdDev,
		Min:    s.Min,
		Max:    s.Max,
		Q1:     s.Q1,
		Q3:     s.Q3,
	}
}

func wireCohort(c study.CohortInfo) domain.CohortRecord {
	return domain.CohortRecord{
		Name:    c.Name,
		Periods: c.Periods,
		Teams:   c.Teams,
	}
}

func per90Ptr(rec dataset.AggregateRecord, metric string) *float64 {
	v, ok := rec.Per90(metric)
	if !ok {
		return nil
	}
	return &v
}

func ratioPtr(rec dataset.AggregateRecord, numerator, complement string) *float64 {
	v, ok := rec.RatioOfTotals(numerator, complement)
	if !ok {
		return nil
	}
	return &v
}

// cleanSheetRatePtr is clean sheets over matches from the summed totals,
// nil when the player has no recorded matches.
func cleanSheetRatePtr(rec dataset.AggregateRecord) *float64 {
	cleanSheets, ok := rec.Total(dataset.MetricCleanSheets)
	if !ok {
		return nil
	}
	matches, ok := rec.Total(dataset.MetricMatches)
	if !ok || matches == 0 {
		return nil
	}
	v := cleanSheets / matches
	return &v
}

func ptr(v float64) *float64 {
	return &v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
