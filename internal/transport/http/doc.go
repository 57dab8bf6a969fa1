// Package http implements the HTTP handlers for the pitch stats service.
// It provides a thin layer between HTTP transport and business logic:
// handlers parse and validate requests, delegate to the services layer, and
// map service errors onto RFC 7807 problem responses.
//
// # Architecture Principles
//
// Handlers in this package follow these principles:
//
//	1. Thin handlers - minimal logic, delegate to services
//	2. HTTP-only concerns - request parsing, response formatting
//	3. Error transformation - convert service sentinels to HTTP responses
//	4. No business logic - all logic belongs in the service layer
//
// # Request Flow
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Error Handling
//
// Service sentinel errors map to problem responses:
//
//	services.ErrRunNotFound       → 404 RUN_NOT_FOUND
//	services.ErrRunConflict       → 409 RUN_CONFLICT
//	services.ErrArtifactNotFound  → 404 ARTIFACT_NOT_FOUND
//	services.ErrNarrativesDisabled → 503 NARRATIVES_DISABLED
//
// Everything else goes through errors.ErrorHandler, which renders RFC 7807
// bodies:
//
//	{
//	    "type": "/errors/validation_failed",
//	    "title": "validation_failed",
//	    "status": 400,
//	    "detail": "study must be one of: goalkeeper, var_impact, all",
//	    "instance": "/api/runs"
//	}
//
// # WebSocket Support
//
// WebSocketHandler upgrades connections with Gorilla WebSocket, registers
// the client with the hub, and starts the read/write pumps. Origin checks
// run against the configured allow list outside development mode.
//
// # Testing
//
// Handlers are tested using httptest with testify mocks standing in for
// the services layer.
package http
