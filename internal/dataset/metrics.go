package dataset

// Metric keys used by the shipped provider exports. Performance files may
// carry any subset; the engine treats metric names as opaque, these constants
// only keep ingestion, studies, and reporting spelling them identically.
const (
	MetricSaves             = "saves"
	MetricGoalsAgainst      = "goals_against"
	MetricCleanSheets       = "clean_sheets"
	MetricMatches           = "matches"
	MetricStarts            = "starts"
	MetricYellowCards       = "yellow_cards"
	MetricRedCards          = "red_cards"
	MetricFoulsCommitted    = "fouls_committed"
	MetricPenaltiesWon      = "penalties_won"
	MetricPenaltiesConceded = "penalties_conceded"
)

// Per90 projects the weighted per-unit rate onto a 90-unit exposure. With
// minutes as the sample weight this is the conventional per-90 rate; the
// projection is unit scaling only, the underlying ratio stays
// sum(numerator)/sum(weight).
func (ar AggregateRecord) Per90(metric string) (float64, bool) {
	rate, ok := ar.PerUnit[metric]
	if !ok {
		return 0, false
	}
	return 90 * rate, true
}

// RatioOfTotals returns numerator/(numerator+complement) over the summed
// totals, the composition rule for success-share metrics such as save
// percentage (saves over saves plus goals against). The second return is
// false when the denominator is zero or either total is absent.
func (ar AggregateRecord) RatioOfTotals(numerator, complement string) (float64, bool) {
	num, okN := ar.MetricTotals[numerator]
	comp, okC := ar.MetricTotals[complement]
	if !okN || !okC || num+comp == 0 {
		return 0, false
	}
	return num / (num + comp), true
}
