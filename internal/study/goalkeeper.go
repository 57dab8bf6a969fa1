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

// Derived metric names the goalkeeper battery reports on. These are wire
// names; the formatter reuses them verbatim.
const (
	DerivedSavePct           = "save_pct"
	DerivedGoalsAgainstPer90 = "goals_against_per_90"
	DerivedCleanSheetRate    = "clean_sheet_rate"
)

// Tercile bucket names, ordered short to tall.
const (
	BucketShort  = "short"
	BucketMedium = "medium"
	BucketTall   = "tall"
)

// MetricCorrelation is one height-versus-metric correlation outcome.
type MetricCorrelation struct {
	Metric string       `json:"metric"`
	Result stats.Result `json:"result"`
}

// BucketSummary describes one height tercile.
type BucketSummary struct {
	Name        string  `json:"name"`
	N           int     `json:"n"`
	MeanHeight  float64 `json:"mean_height_cm"`
	MeanSavePct float64 `json:"mean_save_pct"`
}

// TopPerformer is one row of the matches-filtered leaderboard.
type TopPerformer struct {
	CanonicalID string   `json:"canonical_id"`
	EntityName  string   `json:"entity_name"`
	HeightCM    *float64 `json:"height_cm"`
	SavePct     float64  `json:"save_pct"`
	Matches     float64  `json:"matches"`
	Minutes     float64  `json:"minutes"`
}

// GoalkeeperFindings is the terminal artifact of the goalkeeper study.
type GoalkeeperFindings struct {
	Study          string `json:"study"`
	Entities       int    `json:"entities"`
	PairedEntities int    `json:"paired_entities"`
	Fingerprint    string `json:"dataset_fingerprint"`

	Correlations []MetricCorrelation `json:"correlations"`
	Terciles     []BucketSummary     `json:"terciles"`
	// TercileAssignments maps canonical ID to bucket name for every keeper
	// that entered the partition.
	TercileAssignments  map[string]string   `json:"tercile_assignments"`
	ANOVA               stats.Result        `json:"anova"`
	Outliers            stats.OutlierReport `json:"outliers"`
	OutlierEntities     []string            `json:"outlier_entities"`
	OutlierCanonicalIDs []string            `json:"outlier_canonical_ids"`
	HeightSummary       stats.Summary       `json:"height_summary"`
	SavePctSummary      stats.Summary       `json:"save_pct_summary"`
	TopPerformers       []TopPerformer      `json:"top_performers"`

	Aggregates []dataset.AggregateRecord `json:"aggregates"`
	Warnings   []string                  `json:"warnings,omitempty"`
}

// GoalkeeperStudy correlates goalkeeper height with shot-stopping output.
type GoalkeeperStudy struct {
	cfg    GoalkeeperConfig
	agg    *aggregate.Engine
	stats  *stats.Engine
	logger *slog.Logger
}

// NewGoalkeeperStudy creates the study with its own aggregation thresholds
// and inference options.
func NewGoalkeeperStudy(cfg GoalkeeperConfig, logger *slog.Logger) *GoalkeeperStudy {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoalkeeperStudy{
		cfg:    cfg,
		agg:    aggregate.NewEngine(cfg.Inclusion.Params(), logger),
		stats:  stats.NewEngine(stats.Options{FailFast: cfg.FailFast}, logger),
		logger: logger.With(slog.String("component", "study"), slog.String("study", StudyGoalkeeper)),
	}
}

// Run aggregates keeper seasons against the height table and executes the
// battery: three height correlations, tercile ANOVA on save percentage,
// outlier flags, summaries, and the matches-filtered leaderboard.
func (s *GoalkeeperStudy) Run(ctx context.Context, performance []dataset.PerformanceRecord, attributes []dataset.AttributeRecord) (*GoalkeeperFindings, error) {
	start := time.Now()

	aggs, err := s.agg.MatchAndAggregate(ctx, performance, attributes)
	if err != nil {
		return nil, fmt.Errorf("goalkeeper aggregation: %w", err)
	}

	findings := &GoalkeeperFindings{
		Study:       StudyGoalkeeper,
		Entities:    len(aggs),
		Fingerprint: dataset.Fingerprint(aggs),
		Aggregates:  aggs,
	}

	// Save percentage per entity, in canonical order; entities that never
	// faced a shot cannot define one.
	savePcts := make(map[string]float64, len(aggs))
	var savePctSeries []float64
	var savePctNames []string
	var savePctIDs []string
	for _, rec := range aggs {
		pct, ok := rec.RatioOfTotals(dataset.MetricSaves, dataset.MetricGoalsAgainst)
		if !ok {
			findings.Warnings = append(findings.Warnings,
				fmt.Sprintf("%s: save percentage undefined, no shots on target faced", rec.EntityName))
			continue
		}
		savePcts[rec.CanonicalID] = pct
		savePctSeries = append(savePctSeries, pct)
		savePctNames = append(savePctNames, rec.EntityName)
		savePctIDs = append(savePctIDs, rec.CanonicalID)
	}

	// Height correlations run pairwise-complete: each target pairs height
	// with whichever entities define both values.
	var heights []float64
	for _, rec := range aggs {
		if rec.AttributeValue == nil {
			continue
		}
		heights = append(heights, *rec.AttributeValue)
		findings.PairedEntities++
	}

	correlations := []struct {
		metric string
		value  func(dataset.AggregateRecord) (float64, bool)
	}{
		{DerivedSavePct, func(rec dataset.AggregateRecord) (float64, bool) {
			v, ok := savePcts[rec.CanonicalID]
			return v, ok
		}},
		{DerivedGoalsAgainstPer90, func(rec dataset.AggregateRecord) (float64, bool) {
			return rec.Per90(dataset.MetricGoalsAgainst)
		}},
		{DerivedCleanSheetRate, cleanSheetRate},
	}

	for _, target := range correlations {
		var hs, vs []float64
		for _, rec := range aggs {
			if rec.AttributeValue == nil {
				continue
			}
			v, ok := target.value(rec)
			if !ok {
				continue
			}
			hs = append(hs, *rec.AttributeValue)
			vs = append(vs, v)
		}

		res, err := s.stats.Pearson(ctx, hs, vs)
		if err != nil {
			return nil, fmt.Errorf("goalkeeper correlation %s: %w", target.metric, err)
		}
		findings.Correlations = append(findings.Correlations, MetricCorrelation{
			Metric: target.metric,
			Result: res,
		})
	}

	// Tercile partition of the matched, save-pct-defined keepers.
	buckets, summaries, assignments := s.partitionTerciles(aggs, savePcts)
	findings.Terciles = summaries
	findings.TercileAssignments = assignments

	anova, err := s.stats.OneWayANOVA(ctx, buckets)
	if err != nil {
		return nil, fmt.Errorf("goalkeeper tercile anova: %w", err)
	}
	findings.ANOVA = anova

	outliers, err := s.stats.Outliers(ctx, savePctSeries)
	if err != nil {
		return nil, fmt.Errorf("goalkeeper outliers: %w", err)
	}
	findings.Outliers = outliers
	for _, idx := range outliers.Indices {
		findings.OutlierEntities = append(findings.OutlierEntities, savePctNames[idx])
		findings.OutlierCanonicalIDs = append(findings.OutlierCanonicalIDs, savePctIDs[idx])
	}

	findings.HeightSummary = stats.Describe(heights)
	findings.SavePctSummary = stats.Describe(savePctSeries)
	findings.TopPerformers = s.topPerformers(aggs, savePcts)

	s.logger.InfoContext(ctx, "goalkeeper study completed",
		slog.Duration("duration", time.Since(start)),
		slog.Int("entities", findings.Entities),
		slog.Int("paired", findings.PairedEntities),
		slog.Int("outliers", len(findings.OutlierEntities)),
		slog.Int("warnings", len(findings.Warnings)),
	)

	return findings, nil
}

// partitionTerciles splits matched keepers into short/medium/tall buckets at
// the configured height quantiles. The buckets are disjoint and exhaustive
// over the keepers that define both a height and a save percentage.
func (s *GoalkeeperStudy) partitionTerciles(aggs []dataset.AggregateRecord, savePcts map[string]float64) ([]stats.CohortBucket, []BucketSummary, map[string]string) {
	var heights []float64
	for _, rec := range aggs {
		if rec.AttributeValue == nil {
			continue
		}
		if _, ok := savePcts[rec.CanonicalID]; !ok {
			continue
		}
		heights = append(heights, *rec.AttributeValue)
	}

	cutLow := stats.Percentile(heights, s.cfg.LowerTercile*100)
	cutHigh := stats.Percentile(heights, s.cfg.UpperTercile*100)

	buckets := []stats.CohortBucket{
		{Name: BucketShort},
		{Name: BucketMedium},
		{Name: BucketTall},
	}
	bucketHeights := make([][]float64, len(buckets))
	assignments := make(map[string]string)

	for _, rec := range aggs {
		if rec.AttributeValue == nil {
			continue
		}
		pct, ok := savePcts[rec.CanonicalID]
		if !ok {
			continue
		}

		h := *rec.AttributeValue
		var idx int
		switch {
		case h <= cutLow:
			idx = 0
		case h <= cutHigh:
			idx = 1
		default:
			idx = 2
		}
		buckets[idx].Values = append(buckets[idx].Values, pct)
		bucketHeights[idx] = append(bucketHeights[idx], h)
		assignments[rec.CanonicalID] = buckets[idx].Name
	}

	summaries := make([]BucketSummary, len(buckets))
	for i, b := range buckets {
		summaries[i] = BucketSummary{
			Name:        b.Name,
			N:           len(b.Values),
			MeanHeight:  stats.Mean(bucketHeights[i]),
			MeanSavePct: stats.Mean(b.Values),
		}
	}

	return buckets, summaries, assignments
}

// topPerformers builds the leaderboard: career matches at or above the
// configured floor, ordered by save percentage descending with canonical ID
// as the tiebreak.
func (s *GoalkeeperStudy) topPerformers(aggs []dataset.AggregateRecord, savePcts map[string]float64) []TopPerformer {
	var rows []TopPerformer
	for _, rec := range aggs {
		pct, ok := savePcts[rec.CanonicalID]
		if !ok {
			continue
		}
		matches, _ := rec.Total(dataset.MetricMatches)
		if matches < s.cfg.TopPerformerMinMatches {
			continue
		}
		rows = append(rows, TopPerformer{
			CanonicalID: rec.CanonicalID,
			EntityName:  rec.EntityName,
			HeightCM:    rec.AttributeValue,
			SavePct:     pct,
			Matches:     matches,
			Minutes:     rec.TotalSampleWeight,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SavePct != rows[j].SavePct {
			return rows[i].SavePct > rows[j].SavePct
		}
		return rows[i].CanonicalID < rows[j].CanonicalID
	})

	if len(rows) > s.cfg.TopPerformerLimit {
		rows = rows[:s.cfg.TopPerformerLimit]
	}
	return rows
}

// cleanSheetRate is clean sheets over matches from the summed totals.
func cleanSheetRate(rec dataset.AggregateRecord) (float64, bool) {
	cs, okCS := rec.Total(dataset.MetricCleanSheets)
	matches, okM := rec.Total(dataset.MetricMatches)
	if !okCS || !okM || matches == 0 {
		return 0, false
	}
	return cs / matches, true
}
