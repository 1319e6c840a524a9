package build

import (
	"context"
	"html/template"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/contentbuild/internal/artifact"
	"git.home.luguber.info/inful/contentbuild/internal/content"
	"git.home.luguber.info/inful/contentbuild/internal/discovery"
	ferrors "git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/incremental"
	"git.home.luguber.info/inful/contentbuild/internal/logfields"
	"git.home.luguber.info/inful/contentbuild/internal/markdown"
	"git.home.luguber.info/inful/contentbuild/internal/metrics"
	"git.home.luguber.info/inful/contentbuild/internal/observability"
	"git.home.luguber.info/inful/contentbuild/internal/templates"
)

// DefaultBatchSize is used when ExecutorConfig.BatchSize is not positive.
const DefaultBatchSize = 10

// ExecutorConfig wires the executor's collaborators.
type ExecutorConfig struct {
	OutputDir   string
	EmitJSON    bool
	EmitHTML    bool
	Parallelism int
	BatchSize   int

	// Renderer converts bodies to HTML. Required when EmitHTML is set;
	// when present the HTML is also embedded in the JSON artifact.
	Renderer markdown.Renderer
	// Page renders HTML artifacts. HTML output is skipped when nil.
	Page *templates.Page
	Site templates.Site

	Cache    *incremental.BuildCache
	Recorder metrics.Recorder
	Now      func() time.Time
}

// Executor builds dirty items into per-item artifacts.
type Executor struct {
	cfg    ExecutorConfig
	writer *artifact.Writer
}

// NewExecutor applies defaults and returns an executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Cache == nil {
		cfg.Cache = incremental.NewBuildCache(nil)
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Executor{cfg: cfg, writer: artifact.NewWriter(cfg.OutputDir)}
}

// Build processes dirty in batches of min(BatchSize, len(dirty)) and
// flushes the cache once at the end. It never returns an error: per-item
// problems land in the Report.
func (e *Executor) Build(ctx context.Context, dirty []discovery.Candidate) *Report {
	buildID := observability.GetContext(ctx).BuildID
	if buildID == "" {
		buildID = uuid.NewString()
	}
	report := newReport(buildID, e.cfg.Now())
	ctx = observability.WithStage(ctx, "execute")

	if len(dirty) == 0 {
		report.NothingToRebuild = true
		report.End = e.cfg.Now()
		observability.InfoContext(ctx, "Nothing to rebuild")
		return report
	}

	batchSize := min(e.cfg.BatchSize, len(dirty))
	observability.InfoContext(ctx, "Building items",
		logfields.Count(len(dirty)),
		slog.Int("batch_size", batchSize),
		slog.Int("parallelism", e.cfg.Parallelism))

	for start, batch := 0, 0; start < len(dirty); start, batch = start+batchSize, batch+1 {
		if ctx.Err() != nil {
			report.markCanceled()
			observability.WarnContext(ctx, "Build canceled", logfields.Batch(batch))
			break
		}
		end := min(start+batchSize, len(dirty))
		e.runBatch(ctx, batch, dirty[start:end], report)
	}

	if err := e.cfg.Cache.Flush(ctx); err != nil {
		e.cfg.Recorder.IncCacheFlush(false)
		observability.WarnContext(ctx, "Failed to flush build cache", logfields.Error(err))
	} else {
		e.cfg.Recorder.IncCacheFlush(true)
	}

	report.End = e.cfg.Now()
	observability.InfoContext(ctx, "Build finished",
		slog.String("summary", report.Summary()),
		logfields.DurationMS(float64(report.Duration().Milliseconds())))
	return report
}

func (e *Executor) runBatch(ctx context.Context, batch int, items []discovery.Candidate, report *Report) {
	jobs := make(chan discovery.Candidate)
	workers := min(e.cfg.Parallelism, len(items))

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for c := range jobs {
				e.buildOne(ctx, c, report, id)
			}
		}(w)
	}

	observability.DebugContext(ctx, "Dispatching batch", logfields.Batch(batch), logfields.Count(len(items)))
	for _, c := range items {
		if ctx.Err() != nil {
			report.markCanceled()
			break
		}
		jobs <- c
	}
	close(jobs)
	wg.Wait()
}

func (e *Executor) buildOne(ctx context.Context, c discovery.Candidate, report *Report, worker int) {
	start := time.Now()
	outputs, err := e.process(c)
	if err != nil {
		report.recordFailure(c.Path, c.Key(), err)
		e.cfg.Recorder.ObserveItemDuration(time.Since(start), metrics.ResultFailed)
		observability.WarnContext(ctx, "Item build failed",
			logfields.Path(c.Path), logfields.Worker(worker), logfields.Error(err))
		return
	}
	report.recordSuccess(outputs)
	e.cfg.Recorder.ObserveItemDuration(time.Since(start), metrics.ResultSuccess)
	observability.DebugContext(ctx, "Item built",
		logfields.Topic(c.Topic), logfields.Slug(c.Slug), logfields.Elapsed(start))
}

// process builds one item. The fingerprint is taken before the read so a
// concurrent edit leaves the entry stale rather than falsely fresh.
func (e *Executor) process(c discovery.Candidate) ([]string, error) {
	info, err := os.Stat(c.Path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to stat content file").
			WithContext("path", c.Path).
			Build()
	}
	fingerprint := info.ModTime()

	item, err := content.LoadFile(c.Path, c.Topic, c.Slug)
	if err != nil {
		return nil, err
	}

	var html []byte
	if e.cfg.Renderer != nil {
		html, err = e.cfg.Renderer.Render([]byte(item.Body))
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryRender, "failed to render markdown").
				WithContext("path", c.Path).
				Build()
		}
	}

	var outputs []string
	if e.cfg.EmitJSON {
		data, err := encodeItem(item, e.cfg.Site.URL, html)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryBuild, "failed to encode item JSON").
				WithContext("path", c.Path).
				Build()
		}
		path, err := e.write(JSONPath(item.Topic, item.Slug), data)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, path)
	}

	if e.cfg.EmitHTML && e.cfg.Page != nil {
		page, err := e.cfg.Page.Render(templates.PageData{
			Item:    item,
			HTML:    template.HTML(html), // #nosec G203 -- produced by the markdown renderer
			URL:     item.AbsoluteURL(e.cfg.Site.URL),
			Site:    e.cfg.Site,
			BuiltAt: e.cfg.Now().UTC(),
		})
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryRender, "failed to render page template").
				WithContext("path", c.Path).
				WithContext("template", e.cfg.Page.Name()).
				Build()
		}
		path, err := e.write(HTMLPath(item.Topic, item.Slug), page)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, path)
	}

	e.cfg.Cache.RecordSuccess(c.Path, fingerprint, outputs)
	return outputs, nil
}

func (e *Executor) write(rel string, data []byte) (string, error) {
	path, _, err := e.writer.Write(rel, data)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write artifact").
			WithContext("artifact", rel).
			Build()
	}
	return path, nil
}

// JSONPath is the output-relative path of an item's JSON artifact.
func JSONPath(topic, slug string) string { return topic + "/" + slug + ".json" }

// HTMLPath is the output-relative path of an item's HTML page.
func HTMLPath(topic, slug string) string { return "html/" + topic + "/" + slug + ".html" }
