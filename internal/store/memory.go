package store

import (
	"sync"
)

// MemoryStore is an in-memory implementation of [Store].
//
// A single RWMutex guards the entity map. Writers serialize on a separate
// notification mutex taken before the map lock and held until every listener
// has returned, so the order in which listeners observe changes is exactly the
// commit order. No writer ever waits for the notification mutex while holding
// the map lock, so listeners may read the store; they must not mutate it.
type MemoryStore struct {
	mu       sync.RWMutex
	entities World

	notifyMu sync.Mutex

	listenerMu sync.RWMutex
	listeners  []Listener
}

// NewMemoryStore creates a new, empty in-memory [Store].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(World),
	}
}

// Update merges key=value into the entity and notifies listeners with the
// entity's full map.
func (m *MemoryStore) Update(entity, key string, value any) {
	value = cloneValue(value)

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	attrs, ok := m.entities[entity]
	if !ok {
		attrs = make(Attributes)
		m.entities[entity] = attrs
	}
	attrs[key] = value
	snapshot := attrs.Clone()
	m.mu.Unlock()

	m.notify(entity, snapshot)
}

// Set replaces the entity's attributes and notifies listeners.
func (m *MemoryStore) Set(entity string, data Attributes) {
	stored := data.Clone()
	snapshot := stored.Clone()

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	m.entities[entity] = stored
	m.mu.Unlock()

	m.notify(entity, snapshot)
}

// notify hands a committed change to the listeners. Callers hold notifyMu
// and must not hold mu.
func (m *MemoryStore) notify(entity string, snapshot Attributes) {
	m.listenerMu.RLock()
	listeners := m.listeners
	m.listenerMu.RUnlock()

	for _, l := range listeners {
		l.OnChange(entity, snapshot)
	}
}

// Get returns a copy of the entity's attributes, or an empty map if the entity
// has never been written.
func (m *MemoryStore) Get(entity string) Attributes {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.entities[entity].Clone()
}

// World returns a snapshot of every entity.
//
// The returned map is a deep copy; modifications do not affect the store.
func (m *MemoryStore) World() World {
	m.mu.RLock()
	defer m.mu.RUnlock()

	world := make(World, len(m.entities))
	for entity, attrs := range m.entities {
		world[entity] = attrs.Clone()
	}
	return world
}

// Clear empties the world. Listeners and their registrations are untouched
// and no notification is sent.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	m.entities = make(World)
	m.mu.Unlock()
}

// AddListener appends l to the listener list. Listeners added while a
// notification is in flight take effect from the next change.
func (m *MemoryStore) AddListener(l Listener) {
	if l == nil {
		return
	}

	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()

	// copy-on-write so notify can iterate without holding listenerMu
	next := make([]Listener, len(m.listeners), len(m.listeners)+1)
	copy(next, m.listeners)
	m.listeners = append(next, l)
}

// Len returns the number of stored entities.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entities)
}
