// Package store provides the shared in-memory world and its change listeners.
//
// This package is internal to WorldSync and holds the single mutable mapping
// from entity ID to attribute map that every client converges on. Mutations
// are reported to registered listeners, which is how the broadcast hub learns
// about changes.
//
// The main components are:
//
//   - [Store]: Interface defining the world operations and listener registration
//   - [MemoryStore]: In-memory implementation of Store
//   - [Listener]: Observer notified with an entity's full state after each change
//
// All operations are linearizable with respect to each other. Listeners are
// invoked synchronously, in registration order, after the mutation has been
// committed, and in the same order in which mutations were committed.
//
// Users of the worldsync library should not need to interact with this
// package directly. The store is managed by [worldsync.WorldSync].
package store
