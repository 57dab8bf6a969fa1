// Package ingest reads already-materialized provider exports from local
// disk: performance seasons as CSV, attribute tables as XLSX workbooks or
// CSV. Remote acquisition is someone else's job; this package starts from
// files.
//
// Readers validate shape only (declared columns present, numeric cells
// parseable) and hand back record slices in file order. Identity consistency
// between the two providers is the matcher's concern and is not checked here.
package ingest
