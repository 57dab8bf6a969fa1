package dataset

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint digests an aggregate collection into a stable hex string.
// Records are serialized in canonical order with fixed float formatting, so
// two runs over identical inputs produce identical fingerprints regardless of
// how the caller ordered the slice.
func Fingerprint(records []AggregateRecord) string {
	sorted := make([]AggregateRecord, len(records))
	copy(sorted, records)
	SortAggregates(sorted)

	h, _ := blake2b.New256(nil)
	for _, rec := range sorted {
		fmt.Fprintf(h, "%s|%s|%s|", rec.CanonicalID, rec.EntityName, rec.Confidence)
		if rec.AttributeValue != nil {
			h.Write([]byte(formatFloat(*rec.AttributeValue)))
		}
		h.Write([]byte{'|'})
		for _, p := range rec.Periods {
			h.Write([]byte(p))
			h.Write([]byte{','})
		}
		fmt.Fprintf(h, "|%d|%s|", rec.PeriodCount, formatFloat(rec.TotalSampleWeight))
		for _, name := range rec.MetricNames() {
			fmt.Fprintf(h, "%s=%s/%s;", name,
				formatFloat(rec.MetricTotals[name]), formatFloat(rec.PerUnit[name]))
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintInputs digests the raw inputs of a run so a rerun can assert it
// saw the same dataset before comparing outputs.
func FingerprintInputs(performance []PerformanceRecord, attributes []AttributeRecord) string {
	perf := make([]PerformanceRecord, len(performance))
	copy(perf, performance)
	sort.Slice(perf, func(i, j int) bool {
		if perf[i].EntityName != perf[j].EntityName {
			return perf[i].EntityName < perf[j].EntityName
		}
		return perf[i].Period < perf[j].Period
	})

	attr := make([]AttributeRecord, len(attributes))
	copy(attr, attributes)
	sort.Slice(attr, func(i, j int) bool {
		if attr[i].EntityName != attr[j].EntityName {
			return attr[i].EntityName < attr[j].EntityName
		}
		return attr[i].Period < attr[j].Period
	})

	h, _ := blake2b.New256(nil)
	for _, rec := range perf {
		fmt.Fprintf(h, "p|%s|%s|%s|", rec.EntityName, rec.Period, formatFloat(rec.SampleWeight))
		names := make([]string, 0, len(rec.Metrics))
		for name := range rec.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(h, "%s=%s;", name, formatFloat(rec.Metrics[name]))
		}
		h.Write([]byte{'\n'})
	}
	for _, rec := range attr {
		fmt.Fprintf(h, "a|%s|%s|%s\n", rec.EntityName, rec.Period, formatFloat(rec.Value))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
