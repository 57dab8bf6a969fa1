// Package identity resolves entity names reported by the performance provider
// against the independently keyed attribute provider.
//
// Matching is a two-pass normalized-key lookup. Pass 1 compares names after
// case folding, diacritic stripping and whitespace collapsing. Pass 2 retries
// unmatched names with the normalized tokens sorted, tolerating reordering of
// given and family names between providers. Names still unmatched after pass 2
// keep a nil attribute value rather than being dropped; discarding them would
// bias every downstream correlation toward the subset with known attributes.
//
// Ambiguity is fatal. Two attribute entities that collapse to the same key
// cannot be told apart, and silently picking one would misattribute every
// statistic computed from the join, so the matcher aborts the run with a
// DataIntegrityError instead.
package identity
