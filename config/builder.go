package config

import (
	"sort"

	"github.com/jpalmerr/worldsync"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The logger is not part of the result; callers build it from
// [Config.SlogLevel] and LogFormat and pass [worldsync.WithLogger] themselves.
// Seed entities are emitted in sorted order so construction is deterministic.
func BuildOptions(cfg *Config) []worldsync.Option {
	opts := []worldsync.Option{
		worldsync.WithPort(cfg.Port),
		worldsync.WithQueueLimit(cfg.QueueLimit),
	}

	// zero values leave the SDK defaults in place
	if cfg.WriteTimeout > 0 {
		opts = append(opts, worldsync.WithWriteTimeout(cfg.WriteTimeout.Duration()))
	}
	if cfg.MaxMessageSize > 0 {
		opts = append(opts, worldsync.WithMaxMessageSize(cfg.MaxMessageSize))
	}

	if cfg.Title != "" {
		opts = append(opts, worldsync.WithTitle(cfg.Title))
	}

	if len(cfg.AllowedOrigins) > 0 {
		opts = append(opts, worldsync.WithAllowedOrigins(cfg.AllowedOrigins...))
	}

	// sort entity names for deterministic ordering
	names := make([]string, 0, len(cfg.Entities))
	for name := range cfg.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		opts = append(opts, worldsync.WithEntity(name, cfg.Entities[name]))
	}

	return opts
}
