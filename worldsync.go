package worldsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpalmerr/worldsync/dashboard"
	"github.com/jpalmerr/worldsync/internal/hub"
	"github.com/jpalmerr/worldsync/internal/server"
	"github.com/jpalmerr/worldsync/internal/store"
)

const (
	defaultPort           = 8080
	defaultWriteTimeout   = 5 * time.Second
	defaultMaxMessageSize = 1 << 20
)

// Attributes is the state of one entity: attribute name to a JSON-compatible
// value.
type Attributes = store.Attributes

// World is a snapshot of every entity, keyed by entity ID.
type World = store.World

// WorldSync is the main orchestrator for the shared world and the server that
// exposes it.
//
// WorldSync owns the in-memory store and the broadcast hub that fans every
// change out to connected clients. It is created using [New] with functional
// options and started with [WorldSync.Start].
//
// The typical lifecycle is:
//
//	ws, err := worldsync.New(worldsync.WithPort(8080))
//	if err != nil {
//	    slog.Error("failed to create worldsync", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	ws.Start(ctx) // blocks until context cancelled
//
// The store can be read and written through WorldSync before and while the
// server runs; changes made this way reach subscribers like any other.
type WorldSync struct {
	title          string
	port           int
	writeTimeout   time.Duration
	maxMessageSize int64
	allowedOrigins []string
	logger         *slog.Logger

	store *store.MemoryStore
	hub   *hub.Hub
}

// New creates a new [WorldSync] instance with the given options.
//
// Options have sensible defaults:
//   - Port: 8080
//   - Write timeout: 5 seconds
//   - Max message size: 1 MiB
//   - Queue limit: unbounded
//
// Seed entities from [WithEntity] are stored before any listener is attached,
// so change callbacks only observe later changes.
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*WorldSync, error) {
	cfg := &wsConfig{
		port:           defaultPort,
		writeTimeout:   defaultWriteTimeout,
		maxMessageSize: defaultMaxMessageSize,
		entities:       map[string]Attributes{},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	st := store.NewMemoryStore()
	for entity, attrs := range cfg.entities {
		st.Set(entity, attrs)
	}

	// the hub must be the first listener so subscribers see changes before
	// any user callback runs
	h := hub.NewHub(cfg.queueLimit, logger)
	st.AddListener(h)

	for _, cb := range cfg.changeCallbacks {
		st.AddListener(callbackListener(cb, logger))
	}

	return &WorldSync{
		title:          cfg.title,
		port:           cfg.port,
		writeTimeout:   cfg.writeTimeout,
		maxMessageSize: cfg.maxMessageSize,
		allowedOrigins: cfg.allowedOrigins,
		logger:         logger,
		store:          st,
		hub:            h,
	}, nil
}

// Start serves the world over HTTP and WebSocket.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The HTTP server listens on the configured port
//   - Clients connected to /subscribe receive every change
//   - The page is available at http://localhost:<port>
//
// Cancelling the context shuts the server down and closes every session.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails to start.
func (ws *WorldSync) Start(ctx context.Context) error {
	ws.logger.Info("worldsync starting", "entity_count", ws.store.Len())
	ws.logger.Info("page available", "url", fmt.Sprintf("http://localhost:%d", ws.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	httpServer := server.NewServer(ws.store, ws.hub, server.Options{
		Port:           ws.port,
		Assets:         dashboard.Assets,
		Title:          ws.title,
		WriteTimeout:   ws.writeTimeout,
		MaxMessageSize: ws.maxMessageSize,
		AllowedOrigins: ws.allowedOrigins,
	}, ws.logger)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	ws.logger.Info("worldsync stopped")
	return nil
}

// Port returns the configured HTTP port.
func (ws *WorldSync) Port() int {
	return ws.port
}

// Get returns a copy of an entity's attributes, or an empty map if the entity
// does not exist.
func (ws *WorldSync) Get(entity string) Attributes {
	return ws.store.Get(entity)
}

// Update merges one attribute into an entity and broadcasts the result.
func (ws *WorldSync) Update(entity, key string, value any) {
	ws.store.Update(entity, key, value)
}

// Set replaces an entity's attributes and broadcasts the result.
func (ws *WorldSync) Set(entity string, data Attributes) {
	ws.store.Set(entity, data)
}

// World returns a copy of every entity.
func (ws *WorldSync) World() World {
	return ws.store.World()
}

// Clear removes every entity. Subscribers are not notified.
func (ws *WorldSync) Clear() {
	ws.store.Clear()
}

// Subscribers returns the number of connected stream clients.
func (ws *WorldSync) Subscribers() int {
	return ws.hub.Len()
}

// callbackListener adapts a change callback to a store listener.
func callbackListener(cb func(Change), logger *slog.Logger) store.Listener {
	return store.ListenerFunc(func(entity string, data store.Attributes) {
		invokeCallbackSafe(cb, Change{Entity: entity, Attributes: data.Clone()}, logger)
	})
}

// invokeCallbackSafe calls a change callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Change), change Change, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("change callback panicked",
				"panic", r,
				"entity", change.Entity,
			)
		}
	}()
	cb(change)
}
