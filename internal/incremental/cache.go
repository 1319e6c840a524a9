// Package incremental decides which content items need rebuilding.
//
// BuildCache maps each source path to the mtime observed when it was last
// built successfully, plus the artifacts that build produced. A source is up
// to date when its current mtime is not after that fingerprint. Content
// hashes are never consulted.
package incremental

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/logfields"
	"git.home.luguber.info/inful/contentbuild/internal/storage"
)

// Entry is the cached record of one successful build. Entries are values;
// the cache swaps them wholesale and never edits one in place.
type Entry struct {
	SourcePath  string
	Fingerprint time.Time
	OutputPaths []string
}

// Delta partitions candidate sources by freshness, preserving input order.
type Delta struct {
	Dirty []string
	Clean []string
}

// BuildCache tracks build fingerprints. It is safe for concurrent use.
type BuildCache struct {
	store  storage.CacheStore
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	entries   map[string]Entry
	lastBuild time.Time
	signature string
}

// NewBuildCache creates an empty cache backed by store. Call Load to read
// previously persisted state. A nil store keeps the cache in memory only.
func NewBuildCache(store storage.CacheStore) *BuildCache {
	return &BuildCache{
		store:   store,
		logger:  slog.Default(),
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

// WithLogger sets a custom logger.
func (c *BuildCache) WithLogger(logger *slog.Logger) *BuildCache {
	c.logger = logger
	return c
}

// WithClock overrides the clock used to stamp LastBuild.
func (c *BuildCache) WithClock(now func() time.Time) *BuildCache {
	c.now = now
	return c
}

// Load replaces in-memory state with the persisted snapshot. Any failure
// leaves the cache empty and is logged; it never fails a build.
func (c *BuildCache) Load(ctx context.Context) {
	if c.store == nil {
		return
	}

	snap, err := c.store.Load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
	c.lastBuild = time.Time{}
	c.signature = ""

	if err != nil {
		c.logger.Warn("Build cache unreadable, starting cold", logfields.Error(err))
		return
	}
	for path, rec := range snap.Entries {
		c.entries[path] = Entry{
			SourcePath:  path,
			Fingerprint: rec.Fingerprint,
			OutputPaths: slices.Clone(rec.OutputPaths),
		}
	}
	c.lastBuild = snap.LastBuild
	c.signature = snap.Signature
	c.logger.Debug("Build cache loaded", logfields.Count(len(c.entries)))
}

// ComputeDelta classifies candidates. With force every candidate is dirty.
// A candidate that cannot be stat'ed is dirty so the executor surfaces the
// error instead of silently skipping it.
func (c *BuildCache) ComputeDelta(candidates []string, force bool) Delta {
	var d Delta
	if force {
		d.Dirty = slices.Clone(candidates)
		return d
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, path := range candidates {
		entry, ok := c.entries[path]
		if !ok {
			d.Dirty = append(d.Dirty, path)
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.ModTime().After(entry.Fingerprint) {
			d.Dirty = append(d.Dirty, path)
			continue
		}
		d.Clean = append(d.Clean, path)
	}
	return d
}

// Reconcile adopts signature as the identity of the build options in use and
// reports whether that invalidated any entries. On a mismatch every entry's
// fingerprint is zeroed, so ComputeDelta reports it dirty while its outputs
// stay known for pruning.
func (c *BuildCache) Reconcile(signature string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if signature == c.signature {
		return false
	}
	c.signature = signature
	for path, e := range c.entries {
		e.Fingerprint = time.Time{}
		c.entries[path] = e
	}
	return len(c.entries) > 0
}

// Signature returns the build options signature the entries belong to.
func (c *BuildCache) Signature() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.signature
}

// RecordSuccess stores the fingerprint and outputs for a successful build,
// replacing any previous entry for path.
func (c *BuildCache) RecordSuccess(path string, fingerprint time.Time, outputs []string) {
	entry := Entry{
		SourcePath:  path,
		Fingerprint: fingerprint,
		OutputPaths: dedupe(outputs),
	}

	c.mu.Lock()
	c.entries[path] = entry
	c.mu.Unlock()
}

// Entry returns the cached entry for path.
func (c *BuildCache) Entry(path string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	return e, ok
}

// Evict removes and returns the entry for path.
func (c *BuildCache) Evict(path string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	delete(c.entries, path)
	return e, ok
}

// Paths returns all cached source paths in sorted order.
func (c *BuildCache) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.entries))
}

// Len returns the number of cached entries.
func (c *BuildCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LastBuild returns when the cache was last flushed.
func (c *BuildCache) LastBuild() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastBuild
}

// Clear drops every entry and wipes the persisted store.
func (c *BuildCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.lastBuild = time.Time{}
	c.signature = ""
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Clear(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryCache, "failed to clear build cache").Build()
	}
	return nil
}

// Flush stamps LastBuild and persists the whole cache. Errors are
// warning-severity cache errors; callers log them and carry on.
func (c *BuildCache) Flush(ctx context.Context) error {
	c.mu.Lock()
	c.lastBuild = c.now().UTC()
	snap := storage.NewSnapshot()
	snap.LastBuild = c.lastBuild
	snap.Signature = c.signature
	for path, e := range c.entries {
		snap.Entries[path] = storage.EntryRecord{
			Fingerprint: e.Fingerprint,
			OutputPaths: slices.Clone(e.OutputPaths),
		}
	}
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Save(ctx, snap); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryCache, "failed to persist build cache").
			Warning().
			WithContext("entries", len(snap.Entries)).
			Build()
	}
	return nil
}

// dedupe keeps the first occurrence of each path.
func dedupe(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
