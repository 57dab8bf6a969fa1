package identity

import (
	"context"
	"log/slog"
	"sort"

	"pitchstats/internal/dataset"
	apperrors "pitchstats/internal/errors"
)

// attributeEntry is one attribute entity after merging its per-period rows.
type attributeEntry struct {
	rawName  string
	key      string
	tokenKey string
	value    float64
	period   string
}

// AttributeIndex holds the two matching indexes built from attribute records.
// Building the index surfaces every ambiguous key before any matching runs.
type AttributeIndex struct {
	byKey      map[string]*attributeEntry
	byTokenKey map[string]*attributeEntry
}

// Size returns the number of distinct attribute entities in the index.
func (ix *AttributeIndex) Size() int {
	return len(ix.byKey)
}

// Resolve matches one performance entity name against the index. The returned
// identity always carries the canonical ID derived from the name; unmatched
// names keep a nil attribute value.
func (ix *AttributeIndex) Resolve(entityName string) dataset.MatchedIdentity {
	canonical := Normalize(entityName)
	identity := dataset.MatchedIdentity{
		CanonicalID: canonical,
		EntityName:  entityName,
		Confidence:  dataset.ConfidenceUnmatched,
	}

	if entry, ok := ix.byKey[canonical]; ok {
		v := entry.value
		identity.Confidence = dataset.ConfidenceExact
		identity.AttributeValue = &v
		return identity
	}
	if entry, ok := ix.byTokenKey[TokenKey(entityName)]; ok {
		v := entry.value
		identity.Confidence = dataset.ConfidenceNormalized
		identity.AttributeValue = &v
		return identity
	}
	return identity
}

// Matcher resolves performance entity names against attribute records.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher creates a matcher. A nil logger falls back to slog.Default.
func NewMatcher(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		logger: logger.With(slog.String("component", "identity.matcher")),
	}
}

// BuildIndex folds attribute records into one entry per entity and builds the
// pass-1 and pass-2 lookup tables. Rows sharing a byte-identical raw name are
// per-period observations of one entity and merge to the value from the
// latest period. Rows whose raw names differ but whose keys collide are
// ambiguous and abort with a DataIntegrityError.
func (m *Matcher) BuildIndex(ctx context.Context, attributes []dataset.AttributeRecord) (*AttributeIndex, error) {
	merged := make(map[string]*attributeEntry, len(attributes))
	for _, rec := range attributes {
		entry, ok := merged[rec.EntityName]
		if !ok {
			merged[rec.EntityName] = &attributeEntry{
				rawName:  rec.EntityName,
				key:      Normalize(rec.EntityName),
				tokenKey: TokenKey(rec.EntityName),
				value:    rec.Value,
				period:   rec.Period,
			}
			continue
		}
		// Latest period wins; ties keep the larger value so merge order
		// cannot change the outcome.
		if rec.Period > entry.period || (rec.Period == entry.period && rec.Value > entry.value) {
			entry.value = rec.Value
			entry.period = rec.Period
		}
	}

	// Sorted traversal keeps collision reports stable across runs.
	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	ix := &AttributeIndex{
		byKey:      make(map[string]*attributeEntry, len(merged)),
		byTokenKey: make(map[string]*attributeEntry, len(merged)),
	}
	for _, name := range names {
		entry := merged[name]
		if prior, ok := ix.byKey[entry.key]; ok {
			err := apperrors.NewDataIntegrityError("exact", entry.key, prior.rawName, entry.rawName)
			m.logger.ErrorContext(ctx, "ambiguous attribute key",
				slog.String("key", entry.key),
				slog.String("pass", "exact"))
			return nil, err
		}
		ix.byKey[entry.key] = entry
	}
	for _, name := range names {
		entry := merged[name]
		if prior, ok := ix.byTokenKey[entry.tokenKey]; ok {
			err := apperrors.NewDataIntegrityError("token", entry.tokenKey, prior.rawName, entry.rawName)
			m.logger.ErrorContext(ctx, "ambiguous attribute key",
				slog.String("key", entry.tokenKey),
				slog.String("pass", "token"))
			return nil, err
		}
		ix.byTokenKey[entry.tokenKey] = entry
	}

	m.logger.InfoContext(ctx, "attribute index built",
		slog.Int("rows", len(attributes)),
		slog.Int("entities", ix.Size()))
	return ix, nil
}

// Match resolves every distinct entity in the performance records. The result
// maps canonical ID to its resolved identity; performance names that collapse
// to the same canonical key are the same entity and resolve once. The display
// name for a canonical ID is the lexicographically first raw spelling, so the
// mapping does not depend on input order.
func (m *Matcher) Match(ctx context.Context, performance []dataset.PerformanceRecord, attributes []dataset.AttributeRecord) (map[string]dataset.MatchedIdentity, error) {
	ix, err := m.BuildIndex(ctx, attributes)
	if err != nil {
		return nil, err
	}

	displayNames := make(map[string]string)
	for _, rec := range performance {
		canonical := Normalize(rec.EntityName)
		if canonical == "" {
			continue
		}
		if current, ok := displayNames[canonical]; !ok || rec.EntityName < current {
			displayNames[canonical] = rec.EntityName
		}
	}

	identities := make(map[string]dataset.MatchedIdentity, len(displayNames))
	var exact, normalized, unmatched int
	for canonical, name := range displayNames {
		identity := ix.Resolve(name)
		identities[canonical] = identity
		switch identity.Confidence {
		case dataset.ConfidenceExact:
			exact++
		case dataset.ConfidenceNormalized:
			normalized++
		default:
			unmatched++
		}
	}

	m.logger.InfoContext(ctx, "identity matching complete",
		slog.Int("entities", len(identities)),
		slog.Int("exact", exact),
		slog.Int("normalized", normalized),
		slog.Int("unmatched", unmatched))
	return identities, nil
}
