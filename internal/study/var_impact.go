package study

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"pitchstats/internal/aggregate"
	"pitchstats/internal/dataset"
	"pitchstats/internal/stats"
)

// Cohort names for the VAR comparison.
const (
	CohortPreVAR  = "pre_var"
	CohortWithVAR = "with_var"
)

// CohortInfo describes one side of the comparison.
type CohortInfo struct {
	Name    string   `json:"name"`
	Periods []string `json:"periods"`
	Teams   int      `json:"teams"`
}

// MetricComparison is the full inference battery for one per-90 metric.
type MetricComparison struct {
	Metric            string        `json:"metric"`
	BaselineMean      float64       `json:"baseline_mean_per_90"`
	ComparisonMean    float64       `json:"comparison_mean_per_90"`
	BaselineSummary   stats.Summary `json:"baseline_summary"`
	ComparisonSummary stats.Summary `json:"comparison_summary"`
	TTest             stats.Result  `json:"t_test"`
	EffectSize        stats.Result  `json:"effect_size"`
	PercentChange     stats.Result  `json:"percent_change"`
	BaselineCV        stats.Result  `json:"baseline_cv"`
	ComparisonCV      stats.Result  `json:"comparison_cv"`
}

// TeamDelta is the per-90 movement of one team present in both cohorts,
// keyed by metric name.
type TeamDelta struct {
	CanonicalID string             `json:"canonical_id"`
	EntityName  string             `json:"entity_name"`
	Deltas      map[string]float64 `json:"deltas_per_90"`
}

// VARImpactFindings is the terminal artifact of the VAR study.
type VARImpactFindings struct {
	Study       string     `json:"study"`
	Baseline    CohortInfo `json:"baseline"`
	Comparison  CohortInfo `json:"comparison"`
	Fingerprint string     `json:"dataset_fingerprint"`

	Metrics    []MetricComparison `json:"metrics"`
	TeamDeltas []TeamDelta        `json:"team_deltas"`

	BaselineAggregates   []dataset.AggregateRecord `json:"baseline_aggregates"`
	ComparisonAggregates []dataset.AggregateRecord `json:"comparison_aggregates"`
	Warnings             []string                  `json:"warnings,omitempty"`
}

// VARImpactStudy compares team discipline rates before and after the VAR
// adoption season.
type VARImpactStudy struct {
	cfg    VARImpactConfig
	agg    *aggregate.Engine
	stats  *stats.Engine
	logger *slog.Logger
}

// NewVARImpactStudy creates the study from its cohort definition.
func NewVARImpactStudy(cfg VARImpactConfig, logger *slog.Logger) *VARImpactStudy {
	if logger == nil {
		logger = slog.Default()
	}
	return &VARImpactStudy{
		cfg:    cfg,
		agg:    aggregate.NewEngine(cfg.Inclusion.Params(), logger),
		stats:  stats.NewEngine(stats.Options{FailFast: cfg.FailFast}, logger),
		logger: logger.With(slog.String("component", "study"), slog.String("study", StudyVARImpact)),
	}
}

// Run partitions team-season rows into the two cohorts, aggregates each per
// team, and runs the per-metric battery: Welch t-test, Cohen's d, percentage
// change of cohort means, and per-cohort spread.
func (s *VARImpactStudy) Run(ctx context.Context, performance []dataset.PerformanceRecord) (*VARImpactFindings, error) {
	start := time.Now()

	baselineRows, comparisonRows, unassigned := s.partition(performance)
	if unassigned > 0 {
		s.logger.WarnContext(ctx, "performance rows outside both cohorts ignored",
			slog.Int("rows", unassigned),
		)
	}

	baseAggs, err := s.agg.MatchAndAggregate(ctx, baselineRows, nil)
	if err != nil {
		return nil, fmt.Errorf("baseline cohort aggregation: %w", err)
	}
	compAggs, err := s.agg.MatchAndAggregate(ctx, comparisonRows, nil)
	if err != nil {
		return nil, fmt.Errorf("comparison cohort aggregation: %w", err)
	}

	findings := &VARImpactFindings{
		Study: StudyVARImpact,
		Baseline: CohortInfo{
			Name:    CohortPreVAR,
			Periods: s.cfg.BaselinePeriods,
			Teams:   len(baseAggs),
		},
		Comparison: CohortInfo{
			Name:    CohortWithVAR,
			Periods: s.cfg.ComparisonPeriods,
			Teams:   len(compAggs),
		},
		Fingerprint:          dataset.FingerprintInputs(performance, nil),
		BaselineAggregates:   baseAggs,
		ComparisonAggregates: compAggs,
	}

	for _, metric := range s.cfg.Metrics {
		comparison, err := s.compareMetric(ctx, metric, baseAggs, compAggs)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", metric, err)
		}
		findings.Metrics = append(findings.Metrics, comparison)
	}

	findings.TeamDeltas, findings.Warnings = s.teamDeltas(baseAggs, compAggs)

	s.logger.InfoContext(ctx, "var impact study completed",
		slog.Duration("duration", time.Since(start)),
		slog.Int("baseline_teams", len(baseAggs)),
		slog.Int("comparison_teams", len(compAggs)),
		slog.Int("shared_teams", len(findings.TeamDeltas)),
	)

	return findings, nil
}

// partition splits rows by cohort membership of their period.
func (s *VARImpactStudy) partition(performance []dataset.PerformanceRecord) (baseline, comparison []dataset.PerformanceRecord, unassigned int) {
	membership := make(map[string]string, len(s.cfg.BaselinePeriods)+len(s.cfg.ComparisonPeriods))
	for _, p := range s.cfg.BaselinePeriods {
		membership[p] = CohortPreVAR
	}
	for _, p := range s.cfg.ComparisonPeriods {
		membership[p] = CohortWithVAR
	}

	for _, row := range performance {
		switch membership[row.Period] {
		case CohortPreVAR:
			baseline = append(baseline, row)
		case CohortWithVAR:
			comparison = append(comparison, row)
		default:
			unassigned++
		}
	}
	return baseline, comparison, unassigned
}

// compareMetric runs the battery for one metric over the two cohorts' per-90
// team rates. Aggregates arrive sorted by canonical ID, so the series order
// is reproducible.
func (s *VARImpactStudy) compareMetric(ctx context.Context, metric string, baseAggs, compAggs []dataset.AggregateRecord) (MetricComparison, error) {
	baseSeries := per90Series(baseAggs, metric)
	compSeries := per90Series(compAggs, metric)

	comparison := MetricComparison{
		Metric:            metric,
		BaselineMean:      stats.Mean(baseSeries),
		ComparisonMean:    stats.Mean(compSeries),
		BaselineSummary:   stats.Describe(baseSeries),
		ComparisonSummary: stats.Describe(compSeries),
	}

	var err error
	if comparison.TTest, err = s.stats.WelchTTest(ctx, baseSeries, compSeries); err != nil {
		return MetricComparison{}, fmt.Errorf("welch t-test: %w", err)
	}
	if comparison.EffectSize, err = s.stats.CohenD(ctx, baseSeries, compSeries); err != nil {
		return MetricComparison{}, fmt.Errorf("cohen's d: %w", err)
	}
	if comparison.PercentChange, err = s.stats.PercentChange(ctx, comparison.BaselineMean, comparison.ComparisonMean); err != nil {
		return MetricComparison{}, fmt.Errorf("percent change: %w", err)
	}
	if comparison.BaselineCV, err = s.stats.CoefficientOfVariation(ctx, baseSeries); err != nil {
		return MetricComparison{}, fmt.Errorf("baseline cv: %w", err)
	}
	if comparison.ComparisonCV, err = s.stats.CoefficientOfVariation(ctx, compSeries); err != nil {
		return MetricComparison{}, fmt.Errorf("comparison cv: %w", err)
	}

	return comparison, nil
}

// teamDeltas computes per-90 movement for teams present in both cohorts,
// ordered by canonical ID.
func (s *VARImpactStudy) teamDeltas(baseAggs, compAggs []dataset.AggregateRecord) ([]TeamDelta, []string) {
	baseByID := make(map[string]dataset.AggregateRecord, len(baseAggs))
	for _, rec := range baseAggs {
		baseByID[rec.CanonicalID] = rec
	}

	var shared []string
	compByID := make(map[string]dataset.AggregateRecord, len(compAggs))
	for _, rec := range compAggs {
		compByID[rec.CanonicalID] = rec
		if _, ok := baseByID[rec.CanonicalID]; ok {
			shared = append(shared, rec.CanonicalID)
		}
	}
	sort.Strings(shared)

	var warnings []string
	if only := len(baseAggs) + len(compAggs) - 2*len(shared); only > 0 {
		warnings = append(warnings,
			fmt.Sprintf("%d teams present in only one cohort, excluded from per-team deltas", only))
	}

	deltas := make([]TeamDelta, 0, len(shared))
	for _, id := range shared {
		base, comp := baseByID[id], compByID[id]
		td := TeamDelta{
			CanonicalID: id,
			EntityName:  comp.EntityName,
			Deltas:      make(map[string]float64, len(s.cfg.Metrics)),
		}
		for _, metric := range s.cfg.Metrics {
			b, okB := base.Per90(metric)
			c, okC := comp.Per90(metric)
			if !okB || !okC {
				continue
			}
			td.Deltas[metric] = c - b
		}
		deltas = append(deltas, td)
	}

	return deltas, warnings
}

// per90Series extracts the per-90 rate of one metric across a cohort's
// aggregates, skipping teams that never reported the metric.
func per90Series(aggs []dataset.AggregateRecord, metric string) []float64 {
	series := make([]float64, 0, len(aggs))
	for _, rec := range aggs {
		v, ok := rec.Per90(metric)
		if !ok {
			continue
		}
		series = append(series, v)
	}
	return series
}
