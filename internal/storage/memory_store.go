package storage

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryStore is a CacheStore kept in process memory. Watch mode uses it
// when persistence is disabled, and tests use it to inject failures.
type MemoryStore struct {
	mu   sync.Mutex
	snap *Snapshot

	// SaveErr and LoadErr, when set, are returned by Save and Load.
	SaveErr error
	LoadErr error
	saves   int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snap: NewSnapshot()}
}

// Load implements CacheStore.
func (m *MemoryStore) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return cloneSnapshot(m.snap), nil
}

// Save implements CacheStore.
func (m *MemoryStore) Save(ctx context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.snap = cloneSnapshot(snap)
	m.saves++
	return nil
}

// Clear implements CacheStore.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = NewSnapshot()
	return nil
}

// Close implements CacheStore.
func (m *MemoryStore) Close() error { return nil }

// Saves reports how many successful Save calls the store has seen.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneSnapshot(s *Snapshot) *Snapshot {
	out := &Snapshot{Version: s.Version, LastBuild: s.LastBuild, Signature: s.Signature, Entries: make(map[string]EntryRecord, len(s.Entries))}
	for k, v := range maps.All(s.Entries) {
		out.Entries[k] = EntryRecord{Fingerprint: v.Fingerprint, OutputPaths: slices.Clone(v.OutputPaths)}
	}
	return out
}
