package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/contentbuild/internal/build"
	"git.home.luguber.info/inful/contentbuild/internal/config"
	"git.home.luguber.info/inful/contentbuild/internal/discovery"
	"git.home.luguber.info/inful/contentbuild/internal/observability"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output        string `short:"o" help:"Output directory (overrides build.output_dir)" type:"path"`
	Topic         string `short:"t" help:"Only build items of this topic"`
	Slug          string `short:"s" help:"Only build the item with this slug"`
	IncludeDrafts bool   `name:"include-drafts" help:"Build draft items too (they never enter the feed, sitemap or all.json)"`
	SkipHTML      bool   `name:"skip-html" help:"Do not render HTML pages"`
	SkipJSON      bool   `name:"skip-json" help:"Do not write per-item JSON or all.json"`
	SkipRSS       bool   `name:"skip-rss" help:"Do not write the RSS feed"`
	SkipSitemap   bool   `name:"skip-sitemap" help:"Do not write the sitemap"`
	Force         bool   `short:"f" help:"Rebuild every item regardless of the cache"`
	NoCache       bool   `name:"no-cache" help:"Ignore and do not update the persisted build cache"`
	FailOnEmpty   bool   `name:"fail-on-empty" help:"Exit non-zero when no content is found"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = observability.WithTrigger(ctx, "cli")

	res, err := RunBuild(ctx, cfg, b.request())
	if res != nil && res.Report != nil {
		_, _ = fmt.Fprintln(g.out(), res.Report.Summary())
		for _, f := range res.Report.Failures {
			_, _ = fmt.Fprintf(g.out(), "  failed %s (%s): %s\n", f.Key, f.Category, f.Message)
		}
	}
	return err
}

func (b *BuildCmd) request() build.Request {
	return build.Request{
		Filter:        discovery.Filter{Topic: b.Topic, Slug: b.Slug},
		IncludeDrafts: b.IncludeDrafts,
		SkipHTML:      b.SkipHTML,
		SkipJSON:      b.SkipJSON,
		SkipRSS:       b.SkipRSS,
		SkipSitemap:   b.SkipSitemap,
		Force:         b.Force,
		NoCache:       b.NoCache,
		FailOnEmpty:   b.FailOnEmpty,
		OutputDir:     b.Output,
		Trigger:       "cli",
	}
}

// RunBuild opens the cache, runs one pipeline invocation and closes the cache.
func RunBuild(ctx context.Context, cfg *config.Config, req build.Request) (*build.Result, error) {
	cache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeCache()

	page, err := loadPage(cfg)
	if err != nil {
		return nil, err
	}
	return build.NewService(cfg, cache).WithPage(page).Run(ctx, req)
}
