// Package aggregate folds performance records into one canonical record per
// entity.
//
// The engine joins the performance provider's rows with the attribute
// provider's through the identity matcher, then reduces each entity's
// qualifying periods with a pure fold: rows are grouped by canonical ID into
// an explicit mapping and each group is reduced independently. Per-unit
// metrics are weighted ratios, sum(numerator)/sum(sample_weight), never an
// unweighted mean of per-period ratios, which would let a 200-minute season
// count as much as a 3,000-minute one.
//
// Inclusion is strict absence, not degradation: a period counts only when its
// sample weight clears the per-period minimum, and an entity is emitted only
// when its qualifying period count and total sample weight clear the
// configured floors. Entities that fail are omitted entirely; they represent
// insufficient evidence, not missing attributes.
package aggregate
