// Package stats implements the statistical inference procedures run over
// aggregated records: Pearson correlation with significance, Welch's t-test,
// one-way ANOVA, Cohen's d, IQR outlier detection, percentage change, and the
// descriptive summaries the report layer draws on.
//
// Procedures are independent and composable; each returns a Result that
// always records the sample sizes involved. Numeric edge cases (zero
// variance, zero baseline, undersized samples) are data, not exceptions: the
// Result carries a degenerate flag and a reason, and statistic fields stay
// nil rather than NaN or ±Inf. In fail-fast mode the engine instead returns
// an InsufficientSampleError for precondition violations, for callers that
// treat an underpowered battery as a deployment mistake.
//
// Everything here is deterministic and allocation-local: inputs are never
// mutated, ordering never depends on map iteration, and reruns over the same
// series are bit-identical.
package stats
