// Package server provides the HTTP server for the WorldSync API and streams.
//
// This package is internal to WorldSync and handles all HTTP concerns:
//
//   - REST API: "/world", "/entity/{id}" and "/clear" over the shared store
//   - WebSocket: "/subscribe" runs one session per connection
//   - Server-Sent Events: read-only change stream at "/events"
//   - Page serving: the embedded HTML client at "/"
//
// Malformed request bodies are rejected with a JSON error body and a 4xx
// status. Every request gets an X-Request-ID and an access log line.
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the worldsync library should not need to interact with this
// package directly. The server is started automatically by [worldsync.WorldSync.Start].
package server
