// Package storage persists build cache snapshots. The cache itself lives in
// the incremental package; stores only move whole snapshots to and from disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SnapshotVersion is bumped whenever the persisted layout changes. Snapshots
// with another version are treated as corrupt and discarded.
const SnapshotVersion = 1

// ErrCorrupt indicates a persisted snapshot that could not be decoded.
var ErrCorrupt = errors.New("cache snapshot corrupt")

// CacheStore loads and saves build cache snapshots.
type CacheStore interface {
	// Load returns the persisted snapshot. A store that has never been saved
	// returns an empty snapshot and no error.
	Load(ctx context.Context) (*Snapshot, error)

	// Save replaces the persisted snapshot as a single unit.
	Save(ctx context.Context, snap *Snapshot) error

	// Clear removes all persisted state.
	Clear(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Snapshot is the persisted form of the build cache. Signature identifies the
// build options the entries were produced under.
type Snapshot struct {
	Version   int                    `json:"version"`
	LastBuild time.Time              `json:"last_build"`
	Signature string                 `json:"signature,omitempty"`
	Entries   map[string]EntryRecord `json:"entries"`
}

// EntryRecord is one persisted cache entry keyed by source path.
type EntryRecord struct {
	Fingerprint time.Time `json:"fingerprint"`
	OutputPaths []string  `json:"output_paths,omitempty"`
}

// NewSnapshot returns an empty snapshot at the current version.
func NewSnapshot() *Snapshot {
	return &Snapshot{Version: SnapshotVersion, Entries: map[string]EntryRecord{}}
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open creates the store for backend rooted at dir.
func Open(backend, dir string) (CacheStore, error) {
	switch backend {
	case "", BackendJSON:
		return NewJSONFileStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(dir)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
