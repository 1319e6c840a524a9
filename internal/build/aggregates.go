package build

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/contentbuild/internal/artifact"
	"git.home.luguber.info/inful/contentbuild/internal/content"
	"git.home.luguber.info/inful/contentbuild/internal/feed"
	ferrors "git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/logfields"
	"git.home.luguber.info/inful/contentbuild/internal/markdown"
	"git.home.luguber.info/inful/contentbuild/internal/observability"
	"git.home.luguber.info/inful/contentbuild/internal/sitemap"
)

// IndexFile is the sitewide JSON index.
const IndexFile = "all.json"

// Aggregate names.
const (
	AggregateIndex   = "index"
	AggregateSitemap = "sitemap"
	AggregateFeed    = "feed"
)

// AggregateResult records one sitewide artifact.
type AggregateResult struct {
	Name    string
	Path    string
	Changed bool
}

type aggregateInput struct {
	items    []content.Item
	siteURL  string
	channel  feed.Channel
	maxItems int
	renderer markdown.Renderer
	now      time.Time

	sitemapFile string
	feedFile    string

	skipIndex   bool
	skipSitemap bool
	skipFeed    bool
}

// writeAggregates regenerates the sitewide artifacts. Each artifact is
// independent: a failure is joined into the returned error and the others
// are still written.
func writeAggregates(ctx context.Context, w *artifact.Writer, in aggregateInput) ([]AggregateResult, error) {
	published := make([]content.Item, 0, len(in.items))
	for _, it := range in.items {
		if !it.IsDraft {
			published = append(published, it)
		}
	}

	type job struct {
		name string
		file string
		skip bool
		gen  func() ([]byte, error)
	}
	jobs := []job{
		{AggregateIndex, IndexFile, in.skipIndex, func() ([]byte, error) {
			return encodeIndex(published, in.siteURL)
		}},
		{AggregateSitemap, in.sitemapFile, in.skipSitemap, func() ([]byte, error) {
			return sitemap.Generate(published, in.siteURL, in.now)
		}},
		{AggregateFeed, in.feedFile, in.skipFeed, func() ([]byte, error) {
			return feed.Generate(published, in.channel, feed.Options{
				MaxItems: in.maxItems,
				Renderer: in.renderer,
				Logger:   slog.Default(),
			})
		}},
	}

	var results []AggregateResult
	var errs []error
	for _, j := range jobs {
		if j.skip {
			continue
		}
		start := time.Now()
		data, err := j.gen()
		if err != nil {
			errs = append(errs, ferrors.WrapError(err, ferrors.GetCategory(err), "failed to generate "+j.name).
				WithContext("artifact", j.file).
				Build())
			continue
		}
		path, changed, err := w.Write(j.file, data)
		if err != nil {
			errs = append(errs, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write "+j.name).
				WithContext("artifact", j.file).
				Build())
			continue
		}
		results = append(results, AggregateResult{Name: j.name, Path: path, Changed: changed})
		observability.DebugContext(ctx, "Aggregate ready",
			logfields.Artifact(j.name), slog.Bool("changed", changed), logfields.Elapsed(start))
	}

	if len(errs) > 0 {
		joined := errors.Join(append([]error{ErrAggregate}, errs...)...)
		return results, ferrors.WrapError(joined, ferrors.CategoryBuild, "failed to generate aggregates").Build()
	}
	return results, nil
}

func feedURL(siteURL, file string) string {
	return strings.TrimRight(siteURL, "/") + "/" + strings.TrimLeft(file, "/")
}
