package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONFileName is the snapshot file written by JSONFileStore.
const JSONFileName = "build-cache.json"

// JSONFileStore persists snapshots as a single JSON document. Saves go
// through a temp file and rename so readers never observe a partial file.
type JSONFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewJSONFileStore creates a store that keeps its file in dir.
func NewJSONFileStore(dir string) (*JSONFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &JSONFileStore{dir: dir}, nil
}

// Path returns the snapshot file location.
func (s *JSONFileStore) Path() string {
	return filepath.Join(s.dir, JSONFileName)
}

// Load implements CacheStore.
func (s *JSONFileStore) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return NewSnapshot(), nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrCorrupt, snap.Version, SnapshotVersion)
	}
	if snap.Entries == nil {
		snap.Entries = map[string]EntryRecord{}
	}
	return &snap, nil
}

// Save implements CacheStore.
func (s *JSONFileStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, JSONFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// Clear implements CacheStore.
func (s *JSONFileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// Close implements CacheStore.
func (s *JSONFileStore) Close() error { return nil }
