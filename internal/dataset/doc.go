// Package dataset defines the canonical record model shared by the identity
// matching, aggregation and statistical inference engines.
//
// Records flow through three stages:
//
//  1. PerformanceRecord and AttributeRecord are produced by ingestion and are
//     immutable once created. Performance metrics are raw numerator counts
//     (goals against, cards, saves); per-unit rates are derived later so that
//     multi-period aggregation can weight by sample size.
//  2. The aggregation engine folds qualifying performance rows into one
//     AggregateRecord per canonical entity, attaching the matched attribute
//     value when identity resolution found one.
//  3. AggregateRecords are consumed read-only by the inference engine.
//
// The package also provides a stable fingerprint over record collections so
// that a rerun on identical inputs can be verified to produce identical
// outputs.
package dataset
