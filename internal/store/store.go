package store

// Attributes is the full state of one entity: attribute name to a
// JSON-compatible value.
type Attributes map[string]any

// World is the complete store state, keyed by entity ID.
type World map[string]Attributes

// Listener is notified after every committed Update or Set.
//
// data is the entity's full attribute map after the change, not just the
// changed key. The map is a private copy shared by all listeners of that
// change and must be treated as read-only.
type Listener interface {
	OnChange(entity string, data Attributes)
}

// ListenerFunc adapts an ordinary function to the [Listener] interface.
type ListenerFunc func(entity string, data Attributes)

// OnChange calls f(entity, data).
func (f ListenerFunc) OnChange(entity string, data Attributes) {
	f(entity, data)
}

// Store defines the operations on the shared world.
//
// Store implementations must be safe for concurrent access. Reads of an
// entity that was never written return an empty map rather than an error.
type Store interface {
	// Update merges a single attribute into the entity, creating it if absent,
	// and notifies listeners with the entity's full resulting map.
	Update(entity, key string, value any)

	// Set replaces the entity's whole attribute map and notifies listeners.
	// A nil map is stored as an empty one.
	Set(entity string, data Attributes)

	// Get returns a copy of the entity's attributes, or an empty map.
	Get(entity string) Attributes

	// World returns a consistent copy of every entity.
	World() World

	// Clear removes every entity. Listeners are not notified.
	Clear()

	// AddListener registers l. Registration is append-only.
	AddListener(l Listener)

	// Len returns the number of entities currently stored.
	Len() int
}

// Clone returns a deep copy of a. A nil map clones to an empty map.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the container types produced by JSON and YAML decoding so
// that callers never share mutable state with the store.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Attributes(t).Clone())
	case Attributes:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
