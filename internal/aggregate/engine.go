package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"pitchstats/internal/dataset"
	apperrors "pitchstats/internal/errors"
	"pitchstats/internal/identity"
)

// Engine joins performance rows with attribute rows and reduces them to one
// AggregateRecord per canonical entity.
type Engine struct {
	params  Params
	matcher *identity.Matcher
	logger  *slog.Logger
}

// NewEngine creates an aggregation engine with the specified inclusion
// parameters.
func NewEngine(params Params, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		params:  params,
		matcher: identity.NewMatcher(logger),
		logger:  logger.With(slog.String("component", "aggregate")),
	}
}

// Params returns the inclusion parameters the engine was built with.
func (e *Engine) Params() Params {
	return e.params
}

// periodTotals accumulates one entity-period: split rows (an entity appearing
// twice in the same period) merge here before the per-period minimum is
// applied.
type periodTotals struct {
	weight  float64
	metrics map[string]float64
}

// MatchAndAggregate resolves identities for the performance rows, folds each
// entity's qualifying periods into totals, and returns one record per entity
// that clears the inclusion thresholds, sorted by canonical ID.
//
// A DataIntegrityError from identity resolution aborts the whole run; no
// partial output is returned.
func (e *Engine) MatchAndAggregate(ctx context.Context, performance []dataset.PerformanceRecord, attributes []dataset.AttributeRecord) ([]dataset.AggregateRecord, error) {
	start := time.Now()

	e.logger.InfoContext(ctx, "starting aggregation",
		slog.Int("performance_rows", len(performance)),
		slog.Int("attribute_rows", len(attributes)),
		slog.Float64("per_period_min_weight", e.params.PerPeriodMinWeight),
		slog.Int("min_period_count", e.params.MinPeriodCount),
		slog.Float64("min_sample_weight", e.params.MinSampleWeight),
	)

	if err := e.validateInputs(performance); err != nil {
		e.logger.ErrorContext(ctx, "input validation failed", slog.Any("error", err))
		return nil, fmt.Errorf("validate inputs: %w", err)
	}

	identities, err := e.matcher.Match(ctx, performance, attributes)
	if err != nil {
		return nil, fmt.Errorf("match identities: %w", err)
	}

	groups, skipped := e.groupByEntity(ctx, performance)
	e.logger.InfoContext(ctx, "grouped performance rows",
		slog.Int("entities", len(groups)),
		slog.Int("rows_skipped", skipped),
	)

	canonicalIDs := make([]string, 0, len(groups))
	for id := range groups {
		canonicalIDs = append(canonicalIDs, id)
	}
	sort.Strings(canonicalIDs)

	records := make([]dataset.AggregateRecord, 0, len(groups))
	filtered := 0
	for _, id := range canonicalIDs {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("aggregation canceled: %w", ctx.Err())
		default:
		}

		ident, ok := identities[id]
		if !ok {
			// Cannot happen for rows the grouper accepted; guard anyway.
			e.logger.WarnContext(ctx, "entity missing from identity resolution", slog.String("canonical_id", id))
			filtered++
			continue
		}

		record, ok := e.reduceEntity(id, groups[id], ident)
		if !ok {
			filtered++
			continue
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no entity cleared inclusion thresholds (%d entities, %d filtered): %w",
			len(groups), filtered, apperrors.ErrNoQualifyingPeriod)
	}

	e.logger.InfoContext(ctx, "aggregation completed",
		slog.Duration("duration", time.Since(start)),
		slog.Int("entities_emitted", len(records)),
		slog.Int("entities_filtered", filtered),
	)

	return records, nil
}

// validateInputs rejects inputs the fold cannot operate on.
func (e *Engine) validateInputs(performance []dataset.PerformanceRecord) error {
	if len(performance) == 0 {
		return apperrors.ErrEmptyDataset
	}
	if !e.params.IsValid() {
		return fmt.Errorf("invalid inclusion parameters: per_period_min_weight=%.2f min_period_count=%d min_sample_weight=%.2f",
			e.params.PerPeriodMinWeight, e.params.MinPeriodCount, e.params.MinSampleWeight)
	}
	return nil
}

// groupByEntity buckets performance rows by canonical ID and, within each
// entity, merges rows that share a period. Rows that cannot be aggregated
// (blank name, non-finite or negative weight, non-finite metric) are counted
// and skipped rather than failing the run; upstream parsing reports them.
func (e *Engine) groupByEntity(ctx context.Context, performance []dataset.PerformanceRecord) (map[string]map[string]*periodTotals, int) {
	groups := make(map[string]map[string]*periodTotals)
	skipped := 0

	for _, row := range performance {
		if !rowUsable(row) {
			skipped++
			e.logger.WarnContext(ctx, "skipping unusable performance row",
				slog.String("entity", row.EntityName),
				slog.String("period", row.Period),
				slog.Float64("sample_weight", row.SampleWeight),
			)
			continue
		}

		id := identity.Normalize(row.EntityName)
		periods, ok := groups[id]
		if !ok {
			periods = make(map[string]*periodTotals)
			groups[id] = periods
		}

		totals, ok := periods[row.Period]
		if !ok {
			totals = &periodTotals{metrics: make(map[string]float64)}
			periods[row.Period] = totals
		}
		totals.weight += row.SampleWeight
		for name, value := range row.Metrics {
			totals.metrics[name] += value
		}
	}

	return groups, skipped
}

// reduceEntity folds one entity's periods into an AggregateRecord, applying
// the per-period minimum first and the entity-level floors after. The second
// return value is false when the entity does not qualify.
func (e *Engine) reduceEntity(canonicalID string, periods map[string]*periodTotals, ident dataset.MatchedIdentity) (dataset.AggregateRecord, bool) {
	qualifying := make([]string, 0, len(periods))
	for period, totals := range periods {
		// A zero-weight period carries no evidence even when the
		// configured minimum is zero.
		if totals.weight <= 0 || totals.weight < e.params.PerPeriodMinWeight {
			continue
		}
		qualifying = append(qualifying, period)
	}
	sort.Strings(qualifying)

	if len(qualifying) < e.params.MinPeriodCount {
		return dataset.AggregateRecord{}, false
	}

	totalWeight := 0.0
	metricTotals := make(map[string]float64)
	for _, period := range qualifying {
		totals := periods[period]
		totalWeight += totals.weight
		for name, value := range totals.metrics {
			metricTotals[name] += value
		}
	}

	if totalWeight < e.params.MinSampleWeight {
		return dataset.AggregateRecord{}, false
	}

	perUnit := make(map[string]float64, len(metricTotals))
	for name, total := range metricTotals {
		perUnit[name] = total / totalWeight
	}

	return dataset.AggregateRecord{
		CanonicalID:       canonicalID,
		EntityName:        ident.EntityName,
		Confidence:        ident.Confidence,
		AttributeValue:    ident.AttributeValue,
		Periods:           qualifying,
		PeriodCount:       len(qualifying),
		TotalSampleWeight: totalWeight,
		MetricTotals:      metricTotals,
		PerUnit:           perUnit,
	}, true
}

// rowUsable reports whether a performance row can enter the fold.
func rowUsable(row dataset.PerformanceRecord) bool {
	if row.EntityName == "" || identity.Normalize(row.EntityName) == "" {
		return false
	}
	if row.SampleWeight < 0 || math.IsNaN(row.SampleWeight) || math.IsInf(row.SampleWeight, 0) {
		return false
	}
	for _, value := range row.Metrics {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return false
		}
	}
	return true
}
