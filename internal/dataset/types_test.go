package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 {
	return &v
}

func validAggregate() AggregateRecord {
	return AggregateRecord{
		CanonicalID:       "bernd leno",
		EntityName:        "Bernd Leno",
		Confidence:        ConfidenceExact,
		AttributeValue:    floatPtr(190),
		Periods:           []string{"2021-2022", "2022-2023"},
		PeriodCount:       2,
		TotalSampleWeight: 5130,
		MetricTotals:      map[string]float64{MetricSaves: 210, MetricGoalsAgainst: 81},
		PerUnit:           map[string]float64{MetricSaves: 0.0409, MetricGoalsAgainst: 0.0158},
	}
}

func TestMatchConfidence_IsValid(t *testing.T) {
	tests := []struct {
		name       string
		confidence MatchConfidence
		valid      bool
	}{
		{"exact", ConfidenceExact, true},
		{"normalized", ConfidenceNormalized, true},
		{"unmatched", ConfidenceUnmatched, true},
		{"empty", MatchConfidence(""), false},
		{"unknown category", MatchConfidence("fuzzy"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.confidence.IsValid())
		})
	}
}

func TestPerformanceRecord_IsValid(t *testing.T) {
	base := PerformanceRecord{
		EntityName:   "Jordan Pickford",
		Period:       "2023-2024",
		SampleWeight: 3420,
		Metrics:      map[string]float64{MetricSaves: 112},
	}

	tests := []struct {
		name   string
		mutate func(*PerformanceRecord)
		valid  bool
	}{
		{"complete row", func(*PerformanceRecord) {}, true},
		{"zero weight is a reported period", func(pr *PerformanceRecord) { pr.SampleWeight = 0 }, true},
		{"missing entity name", func(pr *PerformanceRecord) { pr.EntityName = "" }, false},
		{"missing period", func(pr *PerformanceRecord) { pr.Period = "" }, false},
		{"negative weight", func(pr *PerformanceRecord) { pr.SampleWeight = -90 }, false},
		{"no metrics", func(pr *PerformanceRecord) { pr.Metrics = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base
			tt.mutate(&rec)
			assert.Equal(t, tt.valid, rec.IsValid())
		})
	}
}

func TestPerformanceRecord_Metric(t *testing.T) {
	rec := PerformanceRecord{
		EntityName:   "Nick Pope",
		Period:       "2022-2023",
		SampleWeight: 3510,
		Metrics:      map[string]float64{MetricSaves: 103, MetricCleanSheets: 14},
	}

	assert.Equal(t, 103.0, rec.Metric(MetricSaves))
	assert.Equal(t, 0.0, rec.Metric(MetricRedCards), "unreported metric reads as zero")
}

func TestAttributeRecord_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		rec   AttributeRecord
		valid bool
	}{
		{"complete row", AttributeRecord{EntityName: "Alisson", Period: "2023", Value: 198}, true},
		{"missing name", AttributeRecord{Period: "2023", Value: 198}, false},
		{"zero value", AttributeRecord{EntityName: "Alisson", Period: "2023"}, false},
		{"negative value", AttributeRecord{EntityName: "Alisson", Period: "2023", Value: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.rec.IsValid())
		})
	}
}

func TestMatchedIdentity_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		identity MatchedIdentity
		valid    bool
	}{
		{
			"exact match carries a value",
			MatchedIdentity{CanonicalID: "ederson", EntityName: "Ederson", Confidence: ConfidenceExact, AttributeValue: floatPtr(188)},
			true,
		},
		{
			"normalized match carries a value",
			MatchedIdentity{CanonicalID: "jose sa", EntityName: "José Sá", Confidence: ConfidenceNormalized, AttributeValue: floatPtr(192)},
			true,
		},
		{
			"unmatched carries no value",
			MatchedIdentity{CanonicalID: "mystery keeper", EntityName: "Mystery Keeper", Confidence: ConfidenceUnmatched},
			true,
		},
		{
			"matched without a value",
			MatchedIdentity{CanonicalID: "ederson", EntityName: "Ederson", Confidence: ConfidenceExact},
			false,
		},
		{
			"unmatched with a stray value",
			MatchedIdentity{CanonicalID: "mystery keeper", EntityName: "Mystery Keeper", Confidence: ConfidenceUnmatched, AttributeValue: floatPtr(184)},
			false,
		},
		{
			"missing canonical id",
			MatchedIdentity{EntityName: "Ederson", Confidence: ConfidenceExact, AttributeValue: floatPtr(188)},
			false,
		},
		{
			"unknown confidence",
			MatchedIdentity{CanonicalID: "ederson", EntityName: "Ederson", Confidence: MatchConfidence("guess"), AttributeValue: floatPtr(188)},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.identity.IsValid())
		})
	}
}

func TestAggregateRecord_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AggregateRecord)
		valid  bool
	}{
		{"complete record", func(*AggregateRecord) {}, true},
		{"missing canonical id", func(ar *AggregateRecord) { ar.CanonicalID = "" }, false},
		{"period count disagrees with periods", func(ar *AggregateRecord) { ar.PeriodCount = 3 }, false},
		{"zero total weight", func(ar *AggregateRecord) { ar.TotalSampleWeight = 0 }, false},
		{
			"totals and rates diverge",
			func(ar *AggregateRecord) { ar.PerUnit = map[string]float64{MetricSaves: 0.0409} },
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validAggregate()
			tt.mutate(&rec)
			assert.Equal(t, tt.valid, rec.IsValid())
		})
	}
}

func TestAggregateRecord_RateAndTotal(t *testing.T) {
	rec := validAggregate()

	rate, ok := rec.Rate(MetricSaves)
	require.True(t, ok)
	assert.InDelta(t, 0.0409, rate, 1e-12)

	total, ok := rec.Total(MetricGoalsAgainst)
	require.True(t, ok)
	assert.InDelta(t, 81.0, total, 1e-12)

	_, ok = rec.Rate(MetricPenaltiesWon)
	assert.False(t, ok, "unreported metric must not read as zero")
	_, ok = rec.Total(MetricPenaltiesWon)
	assert.False(t, ok)
}

func TestAggregateRecord_MetricNamesSorted(t *testing.T) {
	rec := AggregateRecord{
		PerUnit: map[string]float64{
			MetricYellowCards:    0.21,
			MetricFoulsCommitted: 1.4,
			MetricRedCards:       0.008,
		},
	}

	assert.Equal(t,
		[]string{MetricFoulsCommitted, MetricRedCards, MetricYellowCards},
		rec.MetricNames())
}

func TestAggregateRecord_Per90(t *testing.T) {
	rec := validAggregate()

	per90, ok := rec.Per90(MetricGoalsAgainst)
	require.True(t, ok)
	assert.InDelta(t, 90*0.0158, per90, 1e-12)

	_, ok = rec.Per90(MetricStarts)
	assert.False(t, ok)
}

func TestAggregateRecord_RatioOfTotals(t *testing.T) {
	rec := validAggregate()

	// 210 saves against 81 goals conceded.
	pct, ok := rec.RatioOfTotals(MetricSaves, MetricGoalsAgainst)
	require.True(t, ok)
	assert.InDelta(t, 210.0/291.0, pct, 1e-12)

	t.Run("missing complement", func(t *testing.T) {
		_, ok := rec.RatioOfTotals(MetricSaves, MetricPenaltiesConceded)
		assert.False(t, ok)
	})

	t.Run("zero denominator", func(t *testing.T) {
		idle := validAggregate()
		idle.MetricTotals = map[string]float64{MetricSaves: 0, MetricGoalsAgainst: 0}
		_, ok := idle.RatioOfTotals(MetricSaves, MetricGoalsAgainst)
		assert.False(t, ok, "a keeper who faced no shots has no save percentage")
	})
}

func TestSortAggregates(t *testing.T) {
	records := []AggregateRecord{
		{CanonicalID: "nick pope"},
		{CanonicalID: "alisson becker"},
		{CanonicalID: "emiliano martinez"},
	}

	SortAggregates(records)

	assert.Equal(t, "alisson becker", records[0].CanonicalID)
	assert.Equal(t, "emiliano martinez", records[1].CanonicalID)
	assert.Equal(t, "nick pope", records[2].CanonicalID)
}
