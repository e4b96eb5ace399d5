package storage

import (
	"context"
	"testing"

	"github.com/gurnameh-99/fact-den/internal/config"
	"github.com/gurnameh-99/fact-den/internal/ports"
)

func TestRegistryOpensConfiguredBackend(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	store, err := reg.Open(context.Background(), config.CacheConfig{
		Backend: "file",
		Dir:     t.TempDir(),
	})
	if err != nil {
		t.Fatalf("open file backend: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Fatalf("backend type = %T", store)
	}
}

func TestRegistryUnknownBackend(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if _, err := reg.Open(context.Background(), config.CacheConfig{Backend: "etcd"}); err == nil {
		t.Fatalf("expected error for unregistered backend")
	}
}

func TestRegistryRegisterOverrides(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	var called bool
	reg.Register("file", func(_ context.Context, _ config.CacheConfig) (ports.SnapshotStore, error) {
		called = true
		return nil, nil
	})

	if _, err := reg.Open(context.Background(), config.CacheConfig{Backend: "file"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if !called {
		t.Fatalf("override opener not used")
	}
}
