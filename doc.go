// Package worldsync provides an embeddable shared-state synchronization
// service: one in-memory world of entities, mutated over WebSocket and HTTP,
// with every change pushed to every connected client.
//
// WorldSync is designed as an SDK-first library, allowing developers to run
// the service as part of their applications. Configuration uses the
// functional options pattern.
//
// # Quick Start
//
// Start the service with graceful shutdown:
//
//	ws, _ := worldsync.New(worldsync.WithPort(8080))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	ws.Start(ctx) // blocks until context is cancelled
//
// # Data Model
//
// The world maps entity IDs to attribute maps. Attribute values are any
// JSON-compatible value. Reading an entity that does not exist yields an empty
// map. Writes are last-write-wins.
//
// # Protocol
//
// Clients connect a WebSocket to /subscribe. Every inbound text frame is a
// JSON object of entity ID to attributes; each pair replaces that entity.
// Every change made by any client, by the HTTP API, or through [WorldSync.Set]
// and [WorldSync.Update] is pushed to every connected client, the sender
// included, as a frame of the form {"<entity>": {...full attributes...}}.
//
// The HTTP API offers GET /world, GET /entity/{id}, PUT /entity/{id} (merge)
// and POST /clear. Clearing the world is not broadcast.
//
// # Architecture
//
// WorldSync consists of several internal packages (under internal/):
//
//   - internal/store: In-memory world with ordered change listeners
//   - internal/hub: Subscriber queues and change fan-out
//   - internal/session: Reader and writer goroutines per WebSocket connection
//   - internal/server: HTTP routes, WebSocket upgrade and Server-Sent Events
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package worldsync
