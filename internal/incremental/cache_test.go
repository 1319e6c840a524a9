package incremental

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/storage"
)

func writeSource(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("---\ntitle: x\n---\n"), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func mtimeOf(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.ModTime()
}

func TestComputeDelta_ColdCacheAllDirty(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := writeSource(t, dir, "a.md", base)
	b := writeSource(t, dir, "b.md", base)

	c := NewBuildCache(nil)
	d := c.ComputeDelta([]string{a, b}, false)
	require.Equal(t, []string{a, b}, d.Dirty)
	require.Empty(t, d.Clean)
}

func TestComputeDelta_FingerprintComparison(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := writeSource(t, dir, "a.md", base)
	b := writeSource(t, dir, "b.md", base)

	c := NewBuildCache(nil)
	c.RecordSuccess(a, mtimeOf(t, a), []string{"out/a.json"})
	c.RecordSuccess(b, mtimeOf(t, b), []string{"out/b.json"})

	d := c.ComputeDelta([]string{a, b}, false)
	require.Empty(t, d.Dirty)
	require.Equal(t, []string{a, b}, d.Clean)

	// Touching a source makes exactly that source dirty.
	later := base.Add(time.Minute)
	require.NoError(t, os.Chtimes(b, later, later))
	d = c.ComputeDelta([]string{a, b}, false)
	require.Equal(t, []string{b}, d.Dirty)
	require.Equal(t, []string{a}, d.Clean)

	// An older mtime (e.g. restored from backup) is still considered fresh.
	earlier := base.Add(-time.Hour)
	require.NoError(t, os.Chtimes(a, earlier, earlier))
	d = c.ComputeDelta([]string{a}, false)
	require.Equal(t, []string{a}, d.Clean)
}

func TestComputeDelta_ForceMarksEverythingDirty(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.md", time.Now())

	c := NewBuildCache(nil)
	c.RecordSuccess(a, mtimeOf(t, a), nil)

	d := c.ComputeDelta([]string{a}, true)
	require.Equal(t, []string{a}, d.Dirty)
	require.Empty(t, d.Clean)
}

func TestComputeDelta_MissingSourceIsDirty(t *testing.T) {
	c := NewBuildCache(nil)
	missing := filepath.Join(t.TempDir(), "gone.md")
	c.RecordSuccess(missing, time.Now(), nil)

	d := c.ComputeDelta([]string{missing}, false)
	require.Equal(t, []string{missing}, d.Dirty)
}

func TestRecordSuccess_ReplacesWholeEntry(t *testing.T) {
	c := NewBuildCache(nil)
	t1 := time.Unix(100, 0)
	t2 := time.Unix(200, 0)

	c.RecordSuccess("/a", t1, []string{"x", "y", "x"})
	e, ok := c.Entry("/a")
	require.True(t, ok)
	require.Equal(t, []string{"x", "y"}, e.OutputPaths)

	c.RecordSuccess("/a", t2, []string{"z"})
	e, _ = c.Entry("/a")
	require.True(t, t2.Equal(e.Fingerprint))
	require.Equal(t, []string{"z"}, e.OutputPaths)
	require.Equal(t, 1, c.Len())
}

func TestRecordSuccess_Concurrent(t *testing.T) {
	c := NewBuildCache(nil)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordSuccess(filepath.Join("/src", string(rune('a'+i%26)), "index.md"), time.Unix(int64(i), 0), nil)
		}()
	}
	wg.Wait()
	require.Equal(t, 26, c.Len())
}

func TestFlushAndLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewJSONFileStore(t.TempDir())
	require.NoError(t, err)

	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	c := NewBuildCache(store).WithClock(func() time.Time { return fixed })
	fp := time.Date(2024, 5, 1, 0, 0, 0, 42, time.UTC)
	c.RecordSuccess("/a", fp, []string{"out/a.json"})
	require.NoError(t, c.Flush(ctx))
	require.Equal(t, fixed, c.LastBuild())

	reloaded := NewBuildCache(store)
	reloaded.Load(ctx)
	require.Equal(t, 1, reloaded.Len())
	require.True(t, fixed.Equal(reloaded.LastBuild()))
	e, ok := reloaded.Entry("/a")
	require.True(t, ok)
	require.True(t, fp.Equal(e.Fingerprint))
	require.Equal(t, []string{"out/a.json"}, e.OutputPaths)
}

func TestLoad_CorruptStoreStartsCold(t *testing.T) {
	store := storage.NewMemoryStore()
	store.LoadErr = storage.ErrCorrupt

	c := NewBuildCache(store)
	c.RecordSuccess("/stale", time.Now(), nil)
	c.Load(context.Background())
	require.Equal(t, 0, c.Len())
}

func TestFlush_FailureIsCacheWarning(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SaveErr = errors.New("disk full")

	c := NewBuildCache(store)
	c.RecordSuccess("/a", time.Now(), nil)
	err := c.Flush(context.Background())
	require.Error(t, err)
	require.Equal(t, ferrors.CategoryCache, ferrors.GetCategory(err))
	require.Equal(t, ferrors.SeverityWarning, ferrors.GetSeverity(err))
	// In-memory state survives a failed flush.
	require.Equal(t, 1, c.Len())
}

func TestClearAndEvict(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	c := NewBuildCache(store)
	c.RecordSuccess("/a", time.Now(), []string{"a.json"})
	c.RecordSuccess("/b", time.Now(), nil)
	require.NoError(t, c.Flush(ctx))

	e, ok := c.Evict("/a")
	require.True(t, ok)
	require.Equal(t, []string{"a.json"}, e.OutputPaths)
	_, ok = c.Evict("/a")
	require.False(t, ok)
	require.Equal(t, []string{"/b"}, c.Paths())

	require.NoError(t, c.Clear(ctx))
	require.Equal(t, 0, c.Len())
	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, snap.Entries)
}

func TestReconcile_SignatureChangeInvalidatesEntries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := writeSource(t, dir, "a.md", base)
	store := storage.NewMemoryStore()

	c := NewBuildCache(store)
	require.False(t, c.Reconcile("json=true"), "empty cache has nothing to invalidate")
	c.RecordSuccess(a, mtimeOf(t, a), []string{"out/a.json"})
	require.NoError(t, c.Flush(ctx))

	reloaded := NewBuildCache(store)
	reloaded.Load(ctx)
	require.Equal(t, "json=true", reloaded.Signature())
	require.False(t, reloaded.Reconcile("json=true"))
	require.Equal(t, []string{a}, reloaded.ComputeDelta([]string{a}, false).Clean)

	require.True(t, reloaded.Reconcile("json=false"))
	require.Equal(t, []string{a}, reloaded.ComputeDelta([]string{a}, false).Dirty)
	e, ok := reloaded.Entry(a)
	require.True(t, ok)
	require.True(t, e.Fingerprint.IsZero())
	require.Equal(t, []string{"out/a.json"}, e.OutputPaths)

	// A partial flush keeps the invalidated entry dirty for the next run.
	require.NoError(t, reloaded.Flush(ctx))
	next := NewBuildCache(store)
	next.Load(ctx)
	require.False(t, next.Reconcile("json=false"))
	require.Equal(t, []string{a}, next.ComputeDelta([]string{a}, false).Dirty)

	require.NoError(t, next.Clear(ctx))
	require.Empty(t, next.Signature())
}
