// Package app provides application initialization and lifecycle management
// for the Pitch Stats server. It wires configuration, logging, observability,
// the study run services, and the HTTP transport together, and handles
// graceful shutdown.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from environment and files
//	2. Initialize logging and OpenTelemetry
//	3. Resolve and create the data/artifact directories
//	4. Initialize services with their dependencies
//	5. Set up HTTP handlers and middleware
//	6. Configure and start the HTTP server
//
// # Usage
//
// The main entry point is typically:
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM to ensure:
//
//	- Active HTTP requests are completed
//	- In-flight study runs are cancelled and their final status broadcast
//	- WebSocket connections are closed cleanly
//	- Telemetry providers are flushed
//
// # Error Handling
//
// All initialization errors are returned to the caller. The app does not
// call os.Exit() directly, allowing the main function to control the exit
// process.
package app
