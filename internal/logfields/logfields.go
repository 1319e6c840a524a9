package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyTopic      = "topic"
	KeySlug       = "slug"
	KeyCount      = "count"
	KeyBatch      = "batch"
	KeyWorker     = "worker"
	KeyArtifact   = "artifact"
	KeyBackend    = "backend"
	KeyEvent      = "event"
	KeyURL        = "url"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Topic(t string) slog.Attr        { return slog.String(KeyTopic, t) }
func Slug(s string) slog.Attr         { return slog.String(KeySlug, s) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Batch(n int) slog.Attr           { return slog.Int(KeyBatch, n) }
func Worker(id int) slog.Attr         { return slog.Int(KeyWorker, id) }
func Artifact(name string) slog.Attr  { return slog.String(KeyArtifact, name) }
func Backend(name string) slog.Attr   { return slog.String(KeyBackend, name) }
func Event(op string) slog.Attr       { return slog.String(KeyEvent, op) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }

// Elapsed reports the time since start in milliseconds under KeyDurationMS.
func Elapsed(start time.Time) slog.Attr {
	return DurationMS(float64(time.Since(start).Microseconds()) / 1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
