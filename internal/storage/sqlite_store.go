package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteFileName is the database file created by NewSQLiteStore.
const SQLiteFileName = "build-cache.db"

// SQLiteStore persists snapshots in SQLite. Save rewrites every row inside
// one transaction, so a crash mid-save leaves the previous snapshot intact.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the cache database in dir. Pass
// ":memory:" to get an in-memory database.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	dsn := dir
	if dir != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		dsn = filepath.Join(dir, SQLiteFileName)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		source_path TEXT PRIMARY KEY,
		fingerprint INTEGER NOT NULL,
		output_paths TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load implements CacheStore.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := NewSnapshot()

	var version, lastBuild string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache_meta WHERE key = 'version'").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		return snap, nil
	case err != nil:
		return nil, fmt.Errorf("query cache version: %w", err)
	}
	if v, convErr := strconv.Atoi(version); convErr != nil || v != SnapshotVersion {
		return nil, fmt.Errorf("%w: version %q, want %d", ErrCorrupt, version, SnapshotVersion)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT value FROM cache_meta WHERE key = 'last_build'").Scan(&lastBuild); err == nil {
		if ns, convErr := strconv.ParseInt(lastBuild, 10, 64); convErr == nil && ns != 0 {
			snap.LastBuild = time.Unix(0, ns).UTC()
		}
	}

	if err := s.db.QueryRowContext(ctx, "SELECT value FROM cache_meta WHERE key = 'signature'").Scan(&snap.Signature); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("query cache signature: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT source_path, fingerprint, output_paths FROM cache_entries")
	if err != nil {
		return nil, fmt.Errorf("query cache entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var path, outputsJSON string
		var fingerprint int64
		if err := rows.Scan(&path, &fingerprint, &outputsJSON); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		var outputs []string
		if err := json.Unmarshal([]byte(outputsJSON), &outputs); err != nil {
			return nil, fmt.Errorf("%w: entry %s: %w", ErrCorrupt, path, err)
		}
		rec := EntryRecord{OutputPaths: outputs}
		if fingerprint != 0 {
			rec.Fingerprint = time.Unix(0, fingerprint).UTC()
		}
		snap.Entries[path] = rec
	}
	return snap, rows.Err()
}

// Save implements CacheStore.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_entries"); err != nil {
		return fmt.Errorf("clear cache entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO cache_entries (source_path, fingerprint, output_paths) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for path, rec := range snap.Entries {
		outputs := rec.OutputPaths
		if outputs == nil {
			outputs = []string{}
		}
		outputsJSON, err := json.Marshal(outputs)
		if err != nil {
			return fmt.Errorf("marshal output paths: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, path, unixNanoOrZero(rec.Fingerprint), string(outputsJSON)); err != nil {
			return fmt.Errorf("insert cache entry: %w", err)
		}
	}

	meta := map[string]string{
		"version":    strconv.Itoa(SnapshotVersion),
		"last_build": strconv.FormatInt(unixNanoOrZero(snap.LastBuild), 10),
		"signature":  snap.Signature,
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO cache_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			k, v,
		); err != nil {
			return fmt.Errorf("upsert cache meta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache snapshot: %w", err)
	}
	return nil
}

// Clear implements CacheStore.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries; DELETE FROM cache_meta;"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Close implements CacheStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func unixNanoOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
