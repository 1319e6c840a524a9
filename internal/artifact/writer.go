// Package artifact writes build outputs under the output directory.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideOutputDir is returned for paths that would escape the output directory.
var ErrOutsideOutputDir = errors.New("artifact path escapes output directory")

// Writer writes artifacts under a root directory.
//
// Writes are atomic (temp file plus rename) and skipped when the file
// already holds identical bytes, so an unchanged rebuild touches nothing.
type Writer struct {
	root string
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{root: dir}
}

// Root returns the output directory.
func (w *Writer) Root() string { return w.root }

// Path resolves a slash separated relative path under the root.
func (w *Writer) Path(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if rel == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideOutputDir, rel)
	}
	return filepath.Join(w.root, clean), nil
}

// Write stores data at rel. It reports whether the file changed.
func (w *Writer) Write(rel string, data []byte) (string, bool, error) {
	full, err := w.Path(rel)
	if err != nil {
		return "", false, err
	}

	if existing, err := os.ReadFile(full); err == nil && bytes.Equal(existing, data) {
		return full, false, nil
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(full)+".*.tmp")
	if err != nil {
		return "", false, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", false, fmt.Errorf("write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return "", false, fmt.Errorf("close %s: %w", rel, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", false, fmt.Errorf("chmod %s: %w", rel, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return "", false, fmt.Errorf("replace %s: %w", rel, err)
	}
	return full, true, nil
}

// Remove deletes a previously written artifact given its absolute path.
// Missing files are ignored. Empty parent directories up to the root are
// removed as well.
func (w *Writer) Remove(full string) error {
	rel, err := filepath.Rel(w.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideOutputDir, full)
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", rel, err)
	}

	root := filepath.Clean(w.root)
	for dir := filepath.Dir(full); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break // not empty or already gone
		}
	}
	return nil
}
