// Package watch keeps the output directory up to date while content is
// edited. It rebuilds on filesystem changes (debounced), refreshes the
// time-dependent aggregates on a schedule and optionally serves Prometheus
// metrics.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/contentbuild/internal/build"
	"git.home.luguber.info/inful/contentbuild/internal/logfields"
	"git.home.luguber.info/inful/contentbuild/internal/metrics"
)

// Triggers recorded in the build log context.
const (
	TriggerStartup  = "startup"
	TriggerChange   = "change"
	TriggerSchedule = "schedule"
)

// Builder runs one pipeline invocation.
type Builder interface {
	Run(ctx context.Context, req build.Request) (*build.Result, error)
}

// Options configures a Watcher.
type Options struct {
	// Dirs are watched recursively. Files are watched through their parent.
	Dirs []string
	// Request is the template for every rebuild; Trigger is overwritten.
	Request build.Request

	Debounce        time.Duration
	RefreshInterval time.Duration

	// MetricsAddr enables a /metrics endpoint when non-empty.
	MetricsAddr string
	Registry    *prom.Registry
}

// Watcher drives rebuilds. Builds never overlap; requests that arrive while
// a build is running collapse into one follow-up build.
type Watcher struct {
	builder Builder
	opts    Options

	requests chan string

	mu       sync.Mutex
	timer    *time.Timer
	lastErr  error
	runCount int
}

// New creates a watcher.
func New(builder Builder, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	return &Watcher{
		builder:  builder,
		opts:     opts,
		requests: make(chan string, 1),
	}
}

// Run performs an initial build and then watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fsw.Close() }()
	for _, dir := range w.opts.Dirs {
		if err := addDirsRecursive(fsw, dir); err != nil {
			return err
		}
	}

	if w.opts.MetricsAddr != "" {
		srv := w.startMetricsServer()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("Metrics server shutdown error", logfields.Error(err))
			}
		}()
	}

	if w.opts.RefreshInterval > 0 {
		sched, err := NewScheduler()
		if err != nil {
			return err
		}
		if _, err := sched.ScheduleRefresh(w.opts.RefreshInterval, func() { w.request(TriggerSchedule) }); err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				slog.Warn("Scheduler shutdown error", logfields.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.buildLoop(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	w.request(TriggerStartup)
	slog.Info("Watching for changes", slog.Int("dirs", len(w.opts.Dirs)))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping watch")
			w.stopTimer()
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// LastError returns the error of the most recent build, if any.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Runs returns how many builds have completed.
func (w *Watcher) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runCount
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if shouldIgnoreEvent(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = addDirsRecursive(fsw, ev.Name)
		}
	}
	slog.Debug("File change detected", logfields.Path(ev.Name), logfields.Event(ev.Op.String()))
	w.debounce()
}

// debounce restarts the quiet window; the build is requested when it expires.
func (w *Watcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, func() { w.request(TriggerChange) })
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// request queues a build unless one is already queued.
func (w *Watcher) request(trigger string) {
	select {
	case w.requests <- trigger:
	default:
	}
}

func (w *Watcher) buildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case trigger := <-w.requests:
			w.runBuild(ctx, trigger)
		}
	}
}

func (w *Watcher) runBuild(ctx context.Context, trigger string) {
	req := w.opts.Request
	req.Trigger = trigger
	res, err := w.builder.Run(ctx, req)

	w.mu.Lock()
	w.lastErr = err
	w.runCount++
	w.mu.Unlock()

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		return
	case err != nil:
		slog.Warn("Rebuild failed", slog.String("trigger", trigger), logfields.Error(err))
	case res != nil && res.Report != nil:
		slog.Info("Rebuild complete", slog.String("trigger", trigger), slog.String("summary", res.Report.Summary()))
	}
}

func (w *Watcher) startMetricsServer() *http.Server {
	srv := &http.Server{
		Addr:         w.opts.MetricsAddr,
		Handler:      metrics.NewServeMux(w.opts.Registry),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		slog.Info("Serving metrics", logfields.URL("http://"+w.opts.MetricsAddr+"/metrics"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	return srv
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return w.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && shouldIgnoreEvent(path) {
				return filepath.SkipDir
			}
			if err := w.Add(path); err != nil {
				slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}

// shouldIgnoreEvent returns true for paths that should not trigger rebuilds.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db":
		return true
	}
	return false
}
