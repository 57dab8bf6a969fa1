package dataset

import (
	"sort"
)

// MatchConfidence categorizes how an entity's identity was resolved against
// the attribute source.
type MatchConfidence string

const (
	// ConfidenceExact means the normalized performance name matched an
	// attribute name directly.
	ConfidenceExact MatchConfidence = "exact"
	// ConfidenceNormalized means the match required the token-reorder pass.
	ConfidenceNormalized MatchConfidence = "normalized"
	// ConfidenceUnmatched means no attribute entry matched; the entity is
	// retained with a nil attribute value.
	ConfidenceUnmatched MatchConfidence = "unmatched"
)

// IsValid checks whether the confidence is one of the known categories.
func (mc MatchConfidence) IsValid() bool {
	switch mc {
	case ConfidenceExact, ConfidenceNormalized, ConfidenceUnmatched:
		return true
	}
	return false
}

// PerformanceRecord is one row per entity per period from the performance
// provider. Metrics hold raw numerator counts for the period, keyed by metric
// name; SampleWeight is the period's exposure (minutes or matches played).
// Records are immutable once ingested.
type PerformanceRecord struct {
	EntityName   string             `json:"entity_name"`
	Period       string             `json:"period"`
	SampleWeight float64            `json:"sample_weight"`
	Metrics      map[string]float64 `json:"metrics"`
}

// IsValid checks the record's basic shape. Identity consistency is the
// matcher's concern, not the record's.
func (pr PerformanceRecord) IsValid() bool {
	return pr.EntityName != "" && pr.Period != "" && pr.SampleWeight >= 0 &&
		len(pr.Metrics) > 0
}

// Metric returns the named numerator count, or zero when the period did not
// report it.
func (pr PerformanceRecord) Metric(name string) float64 {
	return pr.Metrics[name]
}

// AttributeRecord is one row per entity per period from the attribute
// provider, which keys entities independently of the performance provider.
// Period identifies the source edition the value is valid for.
type AttributeRecord struct {
	EntityName string  `json:"entity_name"`
	Period     string  `json:"period"`
	Value      float64 `json:"value"`
}

// IsValid checks the record's basic shape.
func (ar AttributeRecord) IsValid() bool {
	return ar.EntityName != "" && ar.Value > 0
}

// MatchedIdentity is the result of resolving one performance entity name
// against the attribute source. AttributeValue is nil for unmatched entities;
// they are retained, not dropped.
type MatchedIdentity struct {
	CanonicalID    string          `json:"canonical_id"`
	EntityName     string          `json:"entity_name"`
	Confidence     MatchConfidence `json:"confidence"`
	AttributeValue *float64        `json:"attribute_value"`
}

// IsValid checks the identity invariants: unmatched identities carry no
// attribute value and matched ones carry exactly one.
func (mi MatchedIdentity) IsValid() bool {
	if mi.CanonicalID == "" || !mi.Confidence.IsValid() {
		return false
	}
	if mi.Confidence == ConfidenceUnmatched {
		return mi.AttributeValue == nil
	}
	return mi.AttributeValue != nil
}

// AggregateRecord is the fold of all qualifying performance periods for one
// canonical entity. MetricTotals hold summed numerators; PerUnit holds the
// weighted ratios sum(numerator)/sum(sample_weight). Entities that fail the
// inclusion filters are never constructed.
type AggregateRecord struct {
	CanonicalID       string             `json:"canonical_id"`
	EntityName        string             `json:"entity_name"`
	Confidence        MatchConfidence    `json:"confidence"`
	AttributeValue    *float64           `json:"attribute_value"`
	Periods           []string           `json:"periods"`
	PeriodCount       int                `json:"period_count"`
	TotalSampleWeight float64            `json:"total_sample_weight"`
	MetricTotals      map[string]float64 `json:"metric_totals"`
	PerUnit           map[string]float64 `json:"per_unit"`
}

// IsValid checks the aggregate invariants.
func (ar AggregateRecord) IsValid() bool {
	return ar.CanonicalID != "" && ar.EntityName != "" &&
		ar.Confidence.IsValid() && ar.PeriodCount > 0 &&
		ar.PeriodCount == len(ar.Periods) && ar.TotalSampleWeight > 0 &&
		len(ar.MetricTotals) == len(ar.PerUnit)
}

// Rate returns the weighted per-unit ratio for the named metric. The second
// return is false when the metric was never reported for this entity.
func (ar AggregateRecord) Rate(metric string) (float64, bool) {
	v, ok := ar.PerUnit[metric]
	return v, ok
}

// Total returns the summed numerator for the named metric.
func (ar AggregateRecord) Total(metric string) (float64, bool) {
	v, ok := ar.MetricTotals[metric]
	return v, ok
}

// MetricNames returns the sorted metric keys present on the record. Sorting
// keeps every downstream traversal independent of map iteration order.
func (ar AggregateRecord) MetricNames() []string {
	names := make([]string, 0, len(ar.PerUnit))
	for name := range ar.PerUnit {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortAggregates orders records by canonical ID in place. Every consumer that
// iterates over aggregates works on this ordering so results never depend on
// grouping-map iteration.
func SortAggregates(records []AggregateRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CanonicalID < records[j].CanonicalID
	})
}
