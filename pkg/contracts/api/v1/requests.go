// Package api contains API contract definitions for the pitch stats service.
// Version v1 represents the current stable API version.
package api

// Common request parameters

// PaginationRequest represents common pagination parameters
type PaginationRequest struct {
	Page     int    `json:"page" query:"page" validate:"min=1"`
	PageSize int    `json:"page_size" query:"page_size" validate:"min=1,max=100"`
	Sort     string `json:"sort" query:"sort" validate:"omitempty,oneof=asc desc"`
}

// Run API Requests

// RunStartRequest represents a request to start a study run
type RunStartRequest struct {
	Study string `json:"study" validate:"required,oneof=goalkeeper var_impact all"`
	// FailFast makes insufficient-sample preconditions abort the run
	// instead of producing degenerate results.
	FailFast bool `json:"fail_fast"`
	// WithNarratives appends a narrative-generation stage after the
	// artifacts are written. Requires an OpenAI key in the server config.
	WithNarratives bool `json:"with_narratives"`
}

// RunStopRequest represents a request to cancel a run
type RunStopRequest struct {
	RunID string `json:"run_id" param:"id" validate:"required,uuid"`
}

// RunListRequest represents a request to list runs
type RunListRequest struct {
	PaginationRequest
	Status string `json:"status" query:"status" validate:"omitempty,oneof=pending running completed failed cancelled"`
	Study  string `json:"study" query:"study" validate:"omitempty,oneof=goalkeeper var_impact all"`
}

// Results API Requests

// ResultsRequest represents a request for a study's analysis results
type ResultsRequest struct {
	Study string `json:"study" param:"study" validate:"required,study"`
}

// AggregatesRequest represents a request for a study's aggregated entities.
// Entities that failed the inclusion filters are never materialized, so the
// response always holds exactly the entities the study analyzed.
type AggregatesRequest struct {
	Study string `json:"study" param:"study" validate:"required,study"`
}

// Narrative API Requests

// NarrativeRequest represents a request to generate a narrative from a
// study's formatted findings
type NarrativeRequest struct {
	Study string `json:"study" validate:"required,study"`
	Kind  string `json:"kind" validate:"required,oneof=executive_summary recruitment scouting"`
}

// Health API Requests

// HealthCheckRequest represents a health check request
type HealthCheckRequest struct {
	Verbose bool `json:"verbose" query:"verbose"`
}
