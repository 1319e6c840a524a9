package build

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/contentbuild/internal/artifact"
	"git.home.luguber.info/inful/contentbuild/internal/config"
	"git.home.luguber.info/inful/contentbuild/internal/content"
	"git.home.luguber.info/inful/contentbuild/internal/discovery"
	"git.home.luguber.info/inful/contentbuild/internal/feed"
	ferrors "git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/incremental"
	"git.home.luguber.info/inful/contentbuild/internal/logfields"
	"git.home.luguber.info/inful/contentbuild/internal/markdown"
	"git.home.luguber.info/inful/contentbuild/internal/metrics"
	"git.home.luguber.info/inful/contentbuild/internal/observability"
	"git.home.luguber.info/inful/contentbuild/internal/templates"
)

// Request describes one pipeline invocation.
type Request struct {
	Filter        discovery.Filter
	IncludeDrafts bool

	SkipHTML    bool
	SkipJSON    bool
	SkipRSS     bool
	SkipSitemap bool

	// Force rebuilds every candidate regardless of the cache.
	Force bool
	// NoCache builds everything with a throwaway in-memory cache and leaves
	// the persisted cache untouched.
	NoCache bool
	// FailOnEmpty turns an empty content tree into an error.
	FailOnEmpty bool

	// OutputDir overrides the configured output directory.
	OutputDir string
	// Trigger is recorded in the log context (cli, watch, schedule).
	Trigger string
}

// Result is the outcome of Service.Run.
type Result struct {
	BuildID    string
	OutputDir  string
	Report     *Report
	Aggregates []AggregateResult
	// Candidates is the number of discovered items after filtering.
	Candidates int
	Drafts     int
	Pruned     int
	Duration   time.Duration
}

// Service is the canonical pipeline entry point.
type Service struct {
	cfg      *config.Config
	cache    *incremental.BuildCache
	renderer markdown.Renderer
	page     *templates.Page
	recorder metrics.Recorder
	now      func() time.Time
}

// NewService creates a service for cfg. cache may be nil, in which case an
// in-memory cache is used.
func NewService(cfg *config.Config, cache *incremental.BuildCache) *Service {
	if cache == nil {
		cache = incremental.NewBuildCache(nil)
	}
	return &Service{
		cfg:      cfg,
		cache:    cache,
		renderer: markdown.NewGoldmarkRenderer(markdown.Options{}),
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
}

// WithRenderer replaces the default goldmark renderer.
func (s *Service) WithRenderer(r markdown.Renderer) *Service {
	s.renderer = r
	return s
}

// WithPage sets the HTML page template.
func (s *Service) WithPage(p *templates.Page) *Service {
	s.page = p
	return s
}

// WithRecorder injects a metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
	return s
}

// WithClock overrides time.Now, which drives sitemap change frequencies.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Cache returns the build cache used by the service.
func (s *Service) Cache() *incremental.BuildCache { return s.cache }

// Run executes discover, scan, delta, execute and aggregate stages.
//
// Per-item failures do not stop the run; they are summarised in the report
// and surface as a build-category error wrapping ErrItemsFailed once the
// aggregates are written.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if s.cfg == nil {
		s.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
		return nil, ferrors.ConfigError("config required").Build()
	}

	start := s.now()
	buildID := uuid.NewString()
	ctx = observability.WithBuildID(ctx, buildID)
	if req.Trigger != "" {
		ctx = observability.WithTrigger(ctx, req.Trigger)
	}
	if req.Filter.Topic != "" {
		ctx = observability.WithTopic(ctx, req.Filter.Topic)
	}

	outDir := req.OutputDir
	if outDir == "" {
		outDir = s.cfg.Build.OutputDir
	}
	result := &Result{BuildID: buildID, OutputDir: outDir}
	finish := func(outcome metrics.BuildOutcomeLabel) {
		result.Duration = s.now().Sub(start)
		s.recorder.IncBuildOutcome(outcome)
		s.recorder.ObserveBuildDuration(result.Duration)
	}

	// Stage 1: discover
	stageStart := time.Now()
	dctx := observability.WithStage(ctx, "discover")
	candidates, err := discovery.Discover(s.cfg.Content.BaseDir, s.cfg.Content.Topics, req.Filter)
	if err != nil && !errors.Is(err, discovery.ErrNoContent) {
		s.recorder.IncStageResult("discover", metrics.ResultFailed)
		finish(metrics.BuildOutcomeFailed)
		return result, err
	}
	if len(candidates) == 0 && (!req.Filter.IsZero() || req.FailOnEmpty) {
		s.recorder.IncStageResult("discover", metrics.ResultFailed)
		finish(metrics.BuildOutcomeFailed)
		return result, ferrors.WrapError(ErrNothingMatched, ferrors.CategoryNotFound, "no content matched the request").
			UserAction().
			WithContext("topic", req.Filter.Topic).
			WithContext("slug", req.Filter.Slug).
			Build()
	}
	s.recorder.ObserveStageDuration("discover", time.Since(stageStart))
	s.recorder.IncStageResult("discover", metrics.ResultSuccess)
	observability.InfoContext(dctx, "Discovered content", logfields.Count(len(candidates)))

	// Stage 2: scan frontmatter, drop drafts
	stageStart = time.Now()
	scanned := scan(observability.WithStage(ctx, "scan"), candidates, req.IncludeDrafts)
	result.Candidates = len(scanned.Buildable)
	result.Drafts = len(scanned.Drafts)
	s.recorder.ObserveStageDuration("scan", time.Since(stageStart))

	opts := Options{
		OutputDir: outDir,
		EmitJSON:  !req.SkipJSON,
		EmitHTML:  !req.SkipHTML && s.page != nil,
		Page:      s.page,
		Site: templates.Site{
			Title:    s.cfg.Site.Title,
			URL:      s.cfg.Site.URL,
			Language: s.cfg.Site.Language,
		},
	}

	cache := s.cache
	if req.NoCache {
		cache = incremental.NewBuildCache(nil)
	}
	writer := artifact.NewWriter(outDir)

	// Stage 3: prune artifacts of vanished sources and excluded drafts
	if !req.NoCache {
		if cache.Reconcile(opts.Signature()) {
			observability.InfoContext(observability.WithStage(ctx, "delta"),
				"Build options changed, cached items will be rebuilt",
				logfields.Count(cache.Len()))
		}
		result.Pruned = s.prune(observability.WithStage(ctx, "prune"), writer, candidates, scanned, req)
	}

	// Stage 4: delta
	delta := cache.ComputeDelta(candidatePaths(scanned.Buildable), req.Force || req.NoCache)
	s.recorder.SetDelta(len(delta.Dirty), len(delta.Clean))
	observability.InfoContext(observability.WithStage(ctx, "delta"), "Computed build delta",
		slog.Int("dirty", len(delta.Dirty)), slog.Int("clean", len(delta.Clean)))

	dirtySet := make(map[string]bool, len(delta.Dirty))
	for _, p := range delta.Dirty {
		dirtySet[p] = true
	}
	dirty := make([]discovery.Candidate, 0, len(delta.Dirty))
	for _, c := range scanned.Buildable {
		if dirtySet[c.Path] {
			dirty = append(dirty, c)
		}
	}

	// Stage 5: execute
	stageStart = time.Now()
	executor := NewExecutor(ExecutorConfig{
		OutputDir:   outDir,
		EmitJSON:    opts.EmitJSON,
		EmitHTML:    opts.EmitHTML,
		Parallelism: s.cfg.Build.Parallelism,
		BatchSize:   s.cfg.Build.BatchSize,
		Renderer:    s.renderer,
		Page:        s.page,
		Site:        opts.Site,
		Cache:       cache,
		Recorder:    s.recorder,
		Now:         s.now,
	})
	report := executor.Build(ctx, dirty)
	report.Skipped = len(delta.Clean)
	result.Report = report
	s.recorder.ObserveStageDuration("execute", time.Since(stageStart))
	s.recorder.IncStageResult("execute", stageResult(report))

	if report.NothingToRebuild && result.Pruned > 0 {
		if err := cache.Flush(ctx); err != nil {
			observability.WarnContext(ctx, "Failed to flush build cache", logfields.Error(err))
		}
	}

	if report.Canceled || ctx.Err() != nil {
		finish(metrics.BuildOutcomeCanceled)
		return result, ferrors.WrapError(context.Cause(ctx), ferrors.CategoryRuntime, "build canceled").Build()
	}

	// Stage 6: aggregates over the full published set
	stageStart = time.Now()
	actx := observability.WithStage(ctx, "aggregate")
	published := scanned.Published
	if !req.Filter.IsZero() {
		published, err = s.fullScan(actx)
		if err != nil {
			s.recorder.IncStageResult("aggregate", metrics.ResultFailed)
			finish(metrics.BuildOutcomeFailed)
			return result, err
		}
	}
	result.Aggregates, err = writeAggregates(actx, writer, aggregateInput{
		items:       published,
		siteURL:     s.cfg.Site.URL,
		channel:     s.channel(),
		maxItems:    s.cfg.Build.MaxFeedItems,
		renderer:    s.renderer,
		now:         s.now(),
		sitemapFile: s.cfg.Build.SitemapFile,
		feedFile:    s.cfg.Build.FeedFile,
		skipIndex:   req.SkipJSON,
		skipSitemap: req.SkipSitemap,
		skipFeed:    req.SkipRSS,
	})
	s.recorder.ObserveStageDuration("aggregate", time.Since(stageStart))
	if err != nil {
		s.recorder.IncStageResult("aggregate", metrics.ResultFailed)
		finish(metrics.BuildOutcomeFailed)
		return result, err
	}
	s.recorder.IncStageResult("aggregate", metrics.ResultSuccess)

	finish(report.Outcome())
	observability.InfoContext(ctx, "Build complete",
		slog.String("summary", report.Summary()),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))

	if report.Failed > 0 {
		return result, ferrors.WrapError(ErrItemsFailed, ferrors.CategoryBuild, report.Summary()).
			WithContext("failed", report.Failed).
			Build()
	}
	return result, nil
}

// prune deletes artifacts whose source disappeared or became an excluded
// draft, and evicts their cache entries. Vanished sources are only detected
// on unfiltered runs since a filtered discovery cannot see the rest.
func (s *Service) prune(ctx context.Context, w *artifact.Writer, candidates []discovery.Candidate, scanned scanResult, req Request) int {
	var stale []string
	if !req.IncludeDrafts {
		stale = append(stale, candidatePaths(scanned.Drafts)...)
	}
	if req.Filter.IsZero() {
		present := make(map[string]bool, len(candidates))
		for _, c := range candidates {
			present[c.Path] = true
		}
		for _, p := range s.cache.Paths() {
			if !present[p] {
				stale = append(stale, p)
			}
		}
	}

	pruned := 0
	for _, path := range stale {
		entry, ok := s.cache.Evict(path)
		if !ok {
			continue
		}
		pruned++
		for _, out := range entry.OutputPaths {
			if err := w.Remove(out); err != nil {
				observability.WarnContext(ctx, "Failed to remove stale artifact",
					logfields.Path(out), logfields.Error(err))
			}
		}
		observability.DebugContext(ctx, "Pruned stale item", logfields.Path(path))
	}
	if pruned > 0 {
		observability.InfoContext(ctx, "Pruned stale items", logfields.Count(pruned))
	}
	return pruned
}

// fullScan discovers and parses every topic for the aggregate stage.
func (s *Service) fullScan(ctx context.Context) ([]content.Item, error) {
	candidates, err := discovery.Discover(s.cfg.Content.BaseDir, s.cfg.Content.Topics, discovery.Filter{})
	if err != nil && !errors.Is(err, discovery.ErrNoContent) {
		return nil, err
	}
	return scan(ctx, candidates, false).Published, nil
}

func (s *Service) channel() feed.Channel {
	site := s.cfg.Site
	return feed.Channel{
		Title:          site.Title,
		Link:           site.URL,
		Description:    site.Description,
		Language:       site.Language,
		ManagingEditor: site.ManagingEditor,
		WebMaster:      site.WebMaster,
		Copyright:      site.Copyright,
		SelfURL:        feedURL(site.URL, s.cfg.Build.FeedFile),
	}
}

func stageResult(r *Report) metrics.ResultLabel {
	switch {
	case r.NothingToRebuild:
		return metrics.ResultSkipped
	case r.Failed > 0:
		return metrics.ResultFailed
	default:
		return metrics.ResultSuccess
	}
}
