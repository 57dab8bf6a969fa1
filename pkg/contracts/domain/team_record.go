package domain

import (
	"strconv"
)

// TeamRecord is one team's aggregated discipline output within a single
// period cohort. Per-90 rates are null when the metric was never collected
// for that team; see KeeperRecord for the null convention.
type TeamRecord struct {
	CanonicalID string `json:"canonical_id" csv:"CanonicalID"`
	TeamName    string `json:"team_name" csv:"TeamName"`
	// Cohort names the period group the row was aggregated over,
	// e.g. "pre_var" or "with_var".
	Cohort string `json:"cohort" csv:"Cohort"`

	Seasons      int     `json:"seasons" csv:"Seasons"`
	TotalMinutes float64 `json:"total_minutes" csv:"TotalMinutes"`

	YellowCardsPer90       *float64 `json:"yellow_cards_per_90" csv:"YellowCardsPer90"`
	RedCardsPer90          *float64 `json:"red_cards_per_90" csv:"RedCardsPer90"`
	FoulsCommittedPer90    *float64 `json:"fouls_committed_per_90" csv:"FoulsCommittedPer90"`
	PenaltiesWonPer90      *float64 `json:"penalties_won_per_90" csv:"PenaltiesWonPer90"`
	PenaltiesConcededPer90 *float64 `json:"penalties_conceded_per_90" csv:"PenaltiesConcededPer90"`
}

// TeamRecordHeaders returns the CSV header row for team records, in the
// same order CSVRecord emits cells.
func TeamRecordHeaders() []string {
	return []string{
		"CanonicalID", "TeamName", "Cohort", "Seasons", "TotalMinutes",
		"YellowCardsPer90", "RedCardsPer90", "FoulsCommittedPer90",
		"PenaltiesWonPer90", "PenaltiesConcededPer90",
	}
}

// CSVRecord renders the record as one CSV row with empty cells for nulls.
func (tr TeamRecord) CSVRecord() []string {
	return []string{
		tr.CanonicalID,
		tr.TeamName,
		tr.Cohort,
		strconv.Itoa(tr.Seasons),
		csvFloat(tr.TotalMinutes),
		csvFloatPtr(tr.YellowCardsPer90),
		csvFloatPtr(tr.RedCardsPer90),
		csvFloatPtr(tr.FoulsCommittedPer90),
		csvFloatPtr(tr.PenaltiesWonPer90),
		csvFloatPtr(tr.PenaltiesConcededPer90),
	}
}
