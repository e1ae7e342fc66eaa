// Package hub fans store changes out to every connected client.
//
// A [Hub] is registered as a listener on the store. For every change it
// serializes the entity and its full attribute map as a single-entry JSON
// object and appends the frame to the queue of each registered [Subscriber],
// including the subscriber of the client that made the change.
//
// Subscriber queues are unbounded by default so a broadcast never waits on a
// slow peer; a stalled peer only grows its own queue. A positive queue limit
// switches to a reset policy where the overflowing subscriber is closed with
// [ErrQueueOverflow].
package hub
