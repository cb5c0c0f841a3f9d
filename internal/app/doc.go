// Package app wires the mass upload service together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Initialize OpenTelemetry (tracing, Prometheus metrics)
//	2. Open the store and register the upload types
//	3. Create the websocket hub, status broadcaster and job queue
//	4. Create the upload and health services
//	5. Set up the chi router with middleware and handlers
//
// Configuration and the logger are loaded by the caller and passed in.
//
// # Graceful Shutdown
//
// Run stops on SIGINT or SIGTERM. Stop drains the HTTP server, waits for
// running uploads, closes websocket clients and flushes telemetry.
package app
