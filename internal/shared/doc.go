// Package shared provides cross-cutting helpers that don't belong to any
// specific domain or architectural layer.
//
// # Structure
//
// The package currently holds a single subpackage:
//
//   - testutil: slog capture handlers and test logger constructors used by
//     package-level tests across the codebase
//
// # Usage Guidelines
//
// This package should only contain:
//
//  1. Test utilities used by multiple packages
//  2. Generic helpers with no domain-specific logic
//
// It should NOT contain business logic, study semantics, or dependencies on
// other internal packages (which would invite import cycles).
//
// # Test Utilities
//
// The testutil subpackage provides a buffered slog.Handler that records every
// log entry, letting tests assert on messages, levels, and attributes:
//
//	func TestSomething(t *testing.T) {
//	    logger, handler := testutil.NewTestLoggerWithCapture(t)
//
//	    svc := NewService(logger)
//	    svc.Do()
//
//	    if !handler.ContainsMessage("run completed") {
//	        t.Error("expected completion log")
//	    }
//	}
//
// For tests that only need a quiet logger, NewTestLogger returns one that
// forwards records to t.Logf without retaining them.
package shared
