package aggregate

// Params controls which periods and entities survive aggregation.
//
// PerPeriodMinWeight is the minimum sample weight a single period needs to
// qualify; periods below it are discarded before any totals are formed.
// MinPeriodCount and MinSampleWeight are entity-level floors applied to the
// qualifying periods: an entity that clears neither threshold is omitted from
// the output entirely rather than emitted with zeroed or null metrics.
type Params struct {
	PerPeriodMinWeight float64 `json:"per_period_min_weight" yaml:"per_period_min_weight"`
	MinPeriodCount     int     `json:"min_period_count" yaml:"min_period_count"`
	MinSampleWeight    float64 `json:"min_sample_weight" yaml:"min_sample_weight"`
}

// DefaultParams admits any entity with at least one weighted period.
func DefaultParams() Params {
	return Params{
		PerPeriodMinWeight: 0,
		MinPeriodCount:     1,
		MinSampleWeight:    0,
	}
}

// IsValid reports whether the parameters are internally coherent.
func (p Params) IsValid() bool {
	if p.PerPeriodMinWeight < 0 || p.MinSampleWeight < 0 {
		return false
	}
	return p.MinPeriodCount >= 1
}
