// Package study defines the configuration-driven analysis batteries that run
// over the canonical dataset: the goalkeeper height study and the VAR impact
// study.
//
// A study owns its whole pipeline slice: it partitions raw provider records
// where the question demands it, drives the aggregation engine with its own
// inclusion thresholds, and runs a fixed sequence of inference procedures.
// Findings are plain data, ordered by canonical ID or declared metric order,
// so two runs over the same inputs serialize identically.
package study
