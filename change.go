package worldsync

// Change describes one committed update to the world.
//
// Change is delivered to callbacks registered with [WithChangeCallback].
// Attributes holds the entity's full state after the change, not only the
// attribute that changed. Each callback receives its own copy and may keep or
// modify it freely.
type Change struct {
	// Entity is the ID of the entity that changed.
	Entity string

	// Attributes is the entity's complete attribute map after the change.
	Attributes Attributes
}
