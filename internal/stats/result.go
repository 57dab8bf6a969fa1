package stats

import "math"

// Procedure identifiers recorded on every Result.
const (
	ProcedurePearson       = "pearson_correlation"
	ProcedureWelchTTest    = "welch_t_test"
	ProcedureOneWayANOVA   = "one_way_anova"
	ProcedureCohenD        = "cohens_d"
	ProcedureOutliers      = "iqr_outliers"
	ProcedurePercentChange = "percent_change"
	ProcedureCV            = "coefficient_of_variation"
)

// SignificanceLevel is the alpha used for significance interpretation.
const SignificanceLevel = 0.05

// Result is the terminal record of one inference procedure.
//
// SampleSizes is always populated, including for degenerate results: a
// reader must be able to tell "not significant" from "not enough data" from
// the record alone. Statistic, PValue, and EffectSize are nil whenever the
// procedure could not define them; they are never NaN or ±Inf.
type Result struct {
	Procedure   string         `json:"procedure"`
	Statistic   *float64       `json:"statistic"`
	PValue      *float64       `json:"p_value"`
	EffectSize  *float64       `json:"effect_size"`
	SampleSizes map[string]int `json:"sample_sizes"`
	Degenerate  bool           `json:"degenerate"`
	Reason      string         `json:"reason,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// Significant reports whether the result carries a p-value below the
// significance level. Degenerate results are never significant.
func (r Result) Significant() bool {
	return !r.Degenerate && r.PValue != nil && *r.PValue < SignificanceLevel
}

// CohortBucket names one partition of a series. Buckets handed to a
// procedure are expected to be disjoint; the procedures never re-partition.
type CohortBucket struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// InterpretCorrelation labels the strength of a correlation coefficient.
func InterpretCorrelation(r float64) string {
	switch abs := math.Abs(r); {
	case abs < 0.3:
		return "weak"
	case abs < 0.7:
		return "moderate"
	default:
		return "strong"
	}
}

// InterpretEffectSize labels a Cohen's d magnitude.
func InterpretEffectSize(d float64) string {
	switch abs := math.Abs(d); {
	case abs < 0.2:
		return "negligible"
	case abs < 0.5:
		return "small"
	case abs < 0.8:
		return "medium"
	default:
		return "large"
	}
}

func fptr(v float64) *float64 {
	return &v
}
