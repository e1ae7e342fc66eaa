package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jpalmerr/worldsync/internal/store"
)

// Hub owns the set of active subscribers and broadcasts store changes to them.
//
// Hub implements [store.Listener]; it is meant to be the first listener
// registered on the store.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	queueLimit  int
	logger      *slog.Logger
}

// NewHub creates an empty Hub.
//
// queueLimit bounds every subscriber created with [Hub.NewSubscriber];
// zero or negative means unbounded.
func NewHub(queueLimit int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		queueLimit:  queueLimit,
		logger:      logger,
	}
}

// NewSubscriber returns a new, unregistered subscriber with a random ID.
func (h *Hub) NewSubscriber() *Subscriber {
	return NewSubscriber(uuid.NewString(), h.queueLimit)
}

// Register adds s to the active set.
//
// A broadcast that is already running may miss s; every broadcast that starts
// after Register returns reaches it.
func (h *Hub) Register(s *Subscriber) {
	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()

	h.logger.Debug("subscriber registered", "subscriber", s.ID(), "subscribers", n)
}

// Unregister removes s from the active set and closes it.
//
// Unregister waits for in-flight broadcasts, so once it returns s receives no
// further frames. Unregistering an unknown or already removed subscriber is a
// no-op.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[s]
	delete(h.subscribers, s)
	n := len(h.subscribers)
	h.mu.Unlock()

	s.Close()
	if ok {
		h.logger.Debug("subscriber unregistered", "subscriber", s.ID(), "subscribers", n)
	}
}

// Broadcast serializes {entity: data} and enqueues it on every registered
// subscriber. It never blocks on a subscriber.
func (h *Hub) Broadcast(entity string, data store.Attributes) {
	if data == nil {
		data = store.Attributes{}
	}
	msg, err := json.Marshal(map[string]store.Attributes{entity: data})
	if err != nil {
		h.logger.Error("failed to encode change", "entity", entity, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subscribers {
		if err := s.Put(msg); errors.Is(err, ErrQueueOverflow) {
			h.logger.Warn("subscriber queue overflow, resetting",
				"subscriber", s.ID(),
				"limit", h.queueLimit,
			)
		}
	}
}

// OnChange implements [store.Listener].
func (h *Hub) OnChange(entity string, data store.Attributes) {
	h.Broadcast(entity, data)
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
