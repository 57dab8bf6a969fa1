// Package report projects study findings into the stable wire records
// served to reporting consumers, and persists them as JSON and CSV
// artifacts.
//
// The formatter is a pure projection: unit scaling (per-90 rates) and ratio
// composition from metric totals happen here, nothing else. Degenerate
// results pass through with their null and flag state intact; a null in an
// artifact always means "not computable from the data", never "zero".
package report
