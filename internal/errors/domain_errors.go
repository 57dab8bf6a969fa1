package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Dataset-level sentinels. Aggregation returns these so studies and tests can
// branch with errors.Is.
var (
	ErrEmptyDataset       = errors.New("empty dataset")
	ErrNoQualifyingPeriod = errors.New("no qualifying periods")
)

// DataIntegrityError reports an ambiguous identity match: two distinct
// attribute entities collapse to the same normalized key. The condition is
// fatal for the run; picking one silently would misattribute every downstream
// statistic.
type DataIntegrityError struct {
	Key   string   // the colliding normalized key
	Names []string // raw entity names involved
	Pass  string   // matching pass that collided: "exact" or "token"
}

// NewDataIntegrityError creates a data integrity error for a key collision.
// Names are sorted so the same collision always reads the same way.
func NewDataIntegrityError(pass, key string, names ...string) *DataIntegrityError {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	return &DataIntegrityError{Key: key, Names: sorted, Pass: pass}
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("[%s] ambiguous identity match on %s key %q: %s",
		ErrTypeDataIntegrity, e.Pass, e.Key, strings.Join(e.Names, " / "))
}

// IsDataIntegrity reports whether err, or any error it wraps, is a
// DataIntegrityError.
func IsDataIntegrity(err error) bool {
	var target *DataIntegrityError
	return errors.As(err, &target)
}

// InsufficientSampleError reports a precondition violation for a statistical
// procedure. It is returned only when the engine runs in fail-fast mode; in
// the default mode the same condition is recorded as a degenerate result.
type InsufficientSampleError struct {
	Procedure   string
	Reason      string
	SampleSizes map[string]int
}

// NewInsufficientSampleError creates an insufficient sample error.
func NewInsufficientSampleError(procedure, reason string, sampleSizes map[string]int) *InsufficientSampleError {
	return &InsufficientSampleError{
		Procedure:   procedure,
		Reason:      reason,
		SampleSizes: sampleSizes,
	}
}

func (e *InsufficientSampleError) Error() string {
	if len(e.SampleSizes) == 0 {
		return fmt.Sprintf("[%s] %s: %s", ErrTypeInsufficientSample, e.Procedure, e.Reason)
	}
	keys := make([]string, 0, len(e.SampleSizes))
	for k := range e.SampleSizes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, e.SampleSizes[k]))
	}
	return fmt.Sprintf("[%s] %s: %s (%s)",
		ErrTypeInsufficientSample, e.Procedure, e.Reason, strings.Join(parts, ", "))
}

// IsInsufficientSample reports whether err, or any error it wraps, is an
// InsufficientSampleError.
func IsInsufficientSample(err error) bool {
	var target *InsufficientSampleError
	return errors.As(err, &target)
}
