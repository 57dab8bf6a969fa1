package domain

// StudyResult is the wire form of one statistical procedure outcome.
//
// Statistic, PValue and EffectSize are pointers WITHOUT omitempty: a
// degenerate procedure serializes them as explicit JSON nulls so consumers
// can tell "not computable" apart from "field removed". SampleSizes is
// always populated, degenerate or not.
type StudyResult struct {
	Procedure   string         `json:"procedure"`
	Statistic   *float64       `json:"statistic"`
	PValue      *float64       `json:"p_value"`
	EffectSize  *float64       `json:"effect_size"`
	SampleSizes map[string]int `json:"sample_sizes"`
	Degenerate  bool           `json:"degenerate"`
	Reason      string         `json:"reason,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`

	// Significant reports the two-sided p < 0.05 verdict; always false for
	// degenerate results.
	Significant bool `json:"significant"`
	// Interpretation is a display label for the magnitude ("weak",
	// "moderate", "large", ...); empty when the procedure has none.
	Interpretation string `json:"interpretation,omitempty"`
}

// MetricResult pairs a derived metric name with its procedure outcome.
type MetricResult struct {
	Metric string      `json:"metric"`
	Result StudyResult `json:"result"`
}

// DistributionSummary is the wire form of a descriptive summary.
type DistributionSummary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
}
