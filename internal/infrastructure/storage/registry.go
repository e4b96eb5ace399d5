package storage

import (
	"context"
	"fmt"

	"github.com/gurnameh-99/fact-den/internal/config"
	"github.com/gurnameh-99/fact-den/internal/ports"
)

// Opener creates a snapshot store from cache configuration.
type Opener func(ctx context.Context, cfg config.CacheConfig) (ports.SnapshotStore, error)

// Registry keeps a mapping from backend names to their openers.
type Registry struct {
	openers map[string]Opener
}

// NewRegistry builds a registry preloaded with the built-in backends.
func NewRegistry() *Registry {
	r := &Registry{openers: map[string]Opener{}}
	r.Register("file", func(_ context.Context, cfg config.CacheConfig) (ports.SnapshotStore, error) {
		return NewFileStore(cfg.Dir)
	})
	r.Register("redis", func(ctx context.Context, cfg config.CacheConfig) (ports.SnapshotStore, error) {
		return NewRedisStore(ctx, cfg.RedisAddr)
	})
	r.Register("postgres", func(ctx context.Context, cfg config.CacheConfig) (ports.SnapshotStore, error) {
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	})
	return r
}

// Register adds or replaces a backend opener.
func (r *Registry) Register(name string, open Opener) {
	if r.openers == nil {
		r.openers = map[string]Opener{}
	}
	r.openers[name] = open
}

// Open resolves the configured backend and constructs the store.
func (r *Registry) Open(ctx context.Context, cfg config.CacheConfig) (ports.SnapshotStore, error) {
	open, ok := r.openers[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("cache backend %s is not registered", cfg.Backend)
	}
	return open(ctx, cfg)
}
