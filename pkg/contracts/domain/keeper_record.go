package domain

import (
	"strconv"
)

// KeeperRecord is the Single Source of Truth (SSOT) for one goalkeeper's
// aggregated output as served to reporting consumers. Field names are part
// of the wire contract: units are explicit in the name (height_cm,
// goals_against_per_90) and MUST NOT change without a schema version bump.
//
// Nullable fields use pointers and serialize as JSON null / empty CSV cell:
//   - HeightCM is null when the player never matched an attribute row.
//   - SavePct and CleanSheetRate are null when their denominator is zero
//     or the underlying metric was never collected.
//   - Per-90 rates are null when the metric was never collected.
//
// A null is a statement about the data and is never collapsed to zero.
type KeeperRecord struct {
	CanonicalID     string   `json:"canonical_id" csv:"CanonicalID"`
	PlayerName      string   `json:"player_name" csv:"PlayerName"`
	MatchConfidence string   `json:"match_confidence" csv:"MatchConfidence"`
	HeightCM        *float64 `json:"height_cm" csv:"HeightCM"`

	Seasons      int      `json:"seasons" csv:"Seasons"`
	TotalMinutes float64  `json:"total_minutes" csv:"TotalMinutes"`
	Matches      float64  `json:"matches" csv:"Matches"`
	Starts       float64  `json:"starts" csv:"Starts"`

	SavesTotal        float64 `json:"saves_total" csv:"SavesTotal"`
	GoalsAgainstTotal float64 `json:"goals_against_total" csv:"GoalsAgainstTotal"`
	CleanSheetsTotal  float64 `json:"clean_sheets_total" csv:"CleanSheetsTotal"`

	SavePct           *float64 `json:"save_pct" csv:"SavePct"`
	CleanSheetRate    *float64 `json:"clean_sheet_rate" csv:"CleanSheetRate"`
	SavesPer90        *float64 `json:"saves_per_90" csv:"SavesPer90"`
	GoalsAgainstPer90 *float64 `json:"goals_against_per_90" csv:"GoalsAgainstPer90"`

	// HeightBucket is the tercile the player fell into ("short", "medium",
	// "tall"), empty when height is null.
	HeightBucket string `json:"height_bucket,omitempty" csv:"HeightBucket"`
	// Outlier marks players flagged by the IQR fence check on save_pct.
	Outlier bool `json:"outlier" csv:"Outlier"`
}

// KeeperRecordHeaders returns the CSV header row for keeper records, in the
// same order CSVRecord emits cells.
func KeeperRecordHeaders() []string {
	return []string{
		"CanonicalID", "PlayerName", "MatchConfidence", "HeightCM",
		"Seasons", "TotalMinutes", "Matches", "Starts",
		"SavesTotal", "GoalsAgainstTotal", "CleanSheetsTotal",
		"SavePct", "CleanSheetRate", "SavesPer90", "GoalsAgainstPer90",
		"HeightBucket", "Outlier",
	}
}

// CSVRecord renders the record as one CSV row. Null fields become empty
// cells, never "0".
func (kr KeeperRecord) CSVRecord() []string {
	return []string{
		kr.CanonicalID,
		kr.PlayerName,
		kr.MatchConfidence,
		csvFloatPtr(kr.HeightCM),
		strconv.Itoa(kr.Seasons),
		csvFloat(kr.TotalMinutes),
		csvFloat(kr.Matches),
		csvFloat(kr.Starts),
		csvFloat(kr.SavesTotal),
		csvFloat(kr.GoalsAgainstTotal),
		csvFloat(kr.CleanSheetsTotal),
		csvFloatPtr(kr.SavePct),
		csvFloatPtr(kr.CleanSheetRate),
		csvFloatPtr(kr.SavesPer90),
		csvFloatPtr(kr.GoalsAgainstPer90),
		kr.HeightBucket,
		strconv.FormatBool(kr.Outlier),
	}
}

func csvFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func csvFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return csvFloat(*v)
}
