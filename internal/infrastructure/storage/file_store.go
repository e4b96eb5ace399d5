package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gurnameh-99/fact-den/internal/ports"
)

// FileStore keeps one snapshot file per key under a base directory.
// Writes go through a temp file and rename so a crash mid-write never
// leaves a truncated snapshot behind.
type FileStore struct {
	dir string
}

var _ ports.SnapshotStore = (*FileStore)(nil)

// NewFileStore creates the base directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: mkdir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads the snapshot for key; absent files yield (nil, nil).
func (s *FileStore) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	return data, nil
}

// Save atomically replaces the snapshot for key.
func (s *FileStore) Save(_ context.Context, key string, data []byte) error {
	target := s.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", key, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	// Keys carry a namespace prefix with colons; keep the filename flat.
	name := strings.ReplaceAll(key, ":", "_") + ".json"
	return filepath.Join(s.dir, name)
}
