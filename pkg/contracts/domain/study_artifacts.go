package domain

import (
	"time"
)

// ArtifactSchemaVersion tracks the artifact wire format. Bump it whenever a
// field name or null convention changes.
const ArtifactSchemaVersion = "v1"

// RunInfo is the metadata header carried by every study artifact. RunID and
// GeneratedAt vary between runs; Fingerprint is the BLAKE2b digest of the
// canonically-ordered dataset and is what reruns are compared on.
type RunInfo struct {
	RunID         string    `json:"run_id"`
	Study         string    `json:"study"`
	GeneratedAt   time.Time `json:"generated_at"`
	SchemaVersion string    `json:"schema_version"`
	Fingerprint   string    `json:"dataset_fingerprint"`
}

// TercileRecord describes one height bucket in the goalkeeper study.
type TercileRecord struct {
	Bucket       string  `json:"bucket"`
	N            int     `json:"n"`
	MeanHeightCM float64 `json:"mean_height_cm"`
	MeanSavePct  float64 `json:"mean_save_pct"`
}

// OutlierReport is the wire form of the IQR fence check. Fences are null
// when the series was too small to define quartiles.
type OutlierReport struct {
	Result     StudyResult `json:"result"`
	Q1         *float64    `json:"q1"`
	Q3         *float64    `json:"q3"`
	IQR        *float64    `json:"iqr"`
	LowerFence *float64    `json:"lower_fence"`
	UpperFence *float64    `json:"upper_fence"`
	Players    []string    `json:"players"`
}

// TopKeeper is one row of the matches-filtered leaderboard. Only players
// with a defined save percentage qualify, so SavePct is not nullable here.
type TopKeeper struct {
	CanonicalID  string   `json:"canonical_id"`
	PlayerName   string   `json:"player_name"`
	HeightCM     *float64 `json:"height_cm"`
	SavePct      float64  `json:"save_pct"`
	Matches      float64  `json:"matches"`
	TotalMinutes float64  `json:"total_minutes"`
}

// GoalkeeperArtifact is the complete wire output of a goalkeeper study run.
type GoalkeeperArtifact struct {
	Run RunInfo `json:"run"`

	Entities       int `json:"entities"`
	PairedEntities int `json:"paired_entities"`

	Records        []KeeperRecord      `json:"records"`
	Correlations   []MetricResult      `json:"correlations"`
	Terciles       []TercileRecord     `json:"terciles"`
	ANOVA          StudyResult         `json:"anova"`
	Outliers       OutlierReport       `json:"outliers"`
	HeightSummary  DistributionSummary `json:"height_summary"`
	SavePctSummary DistributionSummary `json:"save_pct_summary"`
	TopPerformers  []TopKeeper         `json:"top_performers"`
	Warnings       []string            `json:"warnings,omitempty"`
}

// CohortRecord describes one side of a cohort comparison.
type CohortRecord struct {
	Name    string   `json:"name"`
	Periods []string `json:"periods"`
	Teams   int      `json:"teams"`
}

// MetricComparisonRecord is the wire form of one per-90 metric battery in
// the VAR study. Cohort means are null when the metric was never collected.
type MetricComparisonRecord struct {
	Metric                 string              `json:"metric"`
	BaselineMeanPer90      *float64            `json:"baseline_mean_per_90"`
	ComparisonMeanPer90    *float64            `json:"comparison_mean_per_90"`
	BaselineDistribution   DistributionSummary `json:"baseline_distribution"`
	ComparisonDistribution DistributionSummary `json:"comparison_distribution"`
	TTest                  StudyResult         `json:"t_test"`
	EffectSize             StudyResult         `json:"effect_size"`
	PercentChange          StudyResult         `json:"percent_change"`
	BaselineCV             StudyResult         `json:"baseline_cv"`
	ComparisonCV           StudyResult         `json:"comparison_cv"`
}

// TeamDeltaRecord is the per-90 movement of one team present in both
// cohorts, keyed by metric name.
type TeamDeltaRecord struct {
	CanonicalID string             `json:"canonical_id"`
	TeamName    string             `json:"team_name"`
	DeltasPer90 map[string]float64 `json:"deltas_per_90"`
}

// VARImpactArtifact is the complete wire output of a VAR impact study run.
type VARImpactArtifact struct {
	Run RunInfo `json:"run"`

	Baseline   CohortRecord `json:"baseline"`
	Comparison CohortRecord `json:"comparison"`

	Records     []TeamRecord             `json:"records"`
	Comparisons []MetricComparisonRecord `json:"comparisons"`
	TeamDeltas  []TeamDeltaRecord        `json:"team_deltas"`
	Warnings    []string                 `json:"warnings,omitempty"`
}
