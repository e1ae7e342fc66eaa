package worldsync

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// wsConfig holds mutable state during WorldSync construction.
type wsConfig struct {
	title           string
	port            int
	writeTimeout    time.Duration
	maxMessageSize  int64
	queueLimit      int
	allowedOrigins  []string
	entities        map[string]Attributes
	logger          *slog.Logger
	changeCallbacks []func(Change)
}

// Option is a function that configures a [WorldSync] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*wsConfig) error

// WithPort sets the HTTP port for the server.
//
// The page, the REST API and the streams are served at
// http://localhost:<port>. Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *wsConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the WorldSync instance.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	ws, err := worldsync.New(worldsync.WithLogger(logger))
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *wsConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the page title displayed in the browser tab and header.
//
// If not specified, defaults to "WorldSync".
func WithTitle(title string) Option {
	return func(cfg *wsConfig) error {
		cfg.title = title
		return nil
	}
}

// WithChangeCallback registers a function to be called after every change to
// the world.
//
// Callbacks run after the change has been queued for every subscriber, in
// registration order, on the goroutine that made the change.
//
// IMPORTANT: Callbacks must be non-blocking and must not write to the world.
// Long-running work, including further updates, should be dispatched to a
// separate goroutine.
//
// Panics within callbacks are recovered and logged.
//
// Example:
//
//	ws, err := worldsync.New(
//	    worldsync.WithChangeCallback(func(c worldsync.Change) {
//	        log.Printf("%s is now %v", c.Entity, c.Attributes)
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithChangeCallback(cb func(Change)) Option {
	return func(cfg *wsConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.changeCallbacks = append(cfg.changeCallbacks, cb)
		return nil
	}
}

// WithEntity seeds the world with an entity before the server starts.
//
// Calling WithEntity twice with the same ID keeps the last attributes.
//
// Returns an error if the entity ID is empty.
func WithEntity(entity string, attrs Attributes) Option {
	return func(cfg *wsConfig) error {
		if entity == "" {
			return errors.New("entity ID cannot be empty")
		}
		cfg.entities[entity] = attrs.Clone()
		return nil
	}
}

// WithWriteTimeout bounds each frame written to a stream client. A client that
// cannot accept a frame within the timeout is disconnected.
//
// Defaults to 5 seconds. Returns an error if the duration is zero or negative.
func WithWriteTimeout(d time.Duration) Option {
	return func(cfg *wsConfig) error {
		if d <= 0 {
			return errors.New("write timeout must be positive")
		}
		cfg.writeTimeout = d
		return nil
	}
}

// WithMaxMessageSize caps the size in bytes of HTTP request bodies and
// inbound WebSocket frames.
//
// Defaults to 1 MiB. Returns an error if n is zero or negative.
func WithMaxMessageSize(n int64) Option {
	return func(cfg *wsConfig) error {
		if n <= 0 {
			return errors.New("max message size must be positive")
		}
		cfg.maxMessageSize = n
		return nil
	}
}

// WithQueueLimit bounds the number of frames waiting for each subscriber. A
// subscriber that falls further behind is disconnected and can reconnect.
//
// Zero, the default, leaves queues unbounded. Returns an error if n is negative.
func WithQueueLimit(n int) Option {
	return func(cfg *wsConfig) error {
		if n < 0 {
			return errors.New("queue limit cannot be negative")
		}
		cfg.queueLimit = n
		return nil
	}
}

// WithAllowedOrigins restricts which browser origins may open a WebSocket.
//
// With no origins configured, or with "*" among them, any origin is accepted.
// Requests without an Origin header are always accepted.
//
// Returns an error if any origin is empty.
func WithAllowedOrigins(origins ...string) Option {
	return func(cfg *wsConfig) error {
		for i, o := range origins {
			if o == "" {
				return fmt.Errorf("allowed origin %d is empty", i)
			}
		}
		cfg.allowedOrigins = append(cfg.allowedOrigins, origins...)
		return nil
	}
}
