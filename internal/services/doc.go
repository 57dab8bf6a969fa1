// Package services implements the business logic layer between the HTTP
// handlers and the analysis engine.
//
// # Architecture
//
// Services follow these architectural principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//	4. Domain-focused methods that encapsulate business rules
//
// # Available Services
//
// The package provides these core services:
//
//	- RunService: owns the in-memory run registry, executes the study
//	  pipeline (ingest, analysis, artifact generation, optional
//	  narratives) and broadcasts progress over WebSocket
//	- ResultsService: serves study artifacts from disk and generates
//	  narratives on demand
//	- HealthService: answers health, readiness, and liveness probes and
//	  the version and system-stats endpoints
//
// # Error Handling
//
// Services return the sentinel errors declared in errors.go; handlers map
// them onto HTTP status codes. A failed run additionally records its error
// on the run itself, so clients polling the run see the same message the
// API returned.
//
// # Testing
//
// Services are tested against temp directories and the MockRunHub helper:
//
//	hub := new(MockRunHub)
//	hub.On("BroadcastRunSnapshot", mock.Anything, mock.Anything).Return()
//	svc := NewRunService(cfg, paths, studyCfg, hub, nil, nil, logger)
package services
