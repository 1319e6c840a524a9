package commands

import (
	"context"
	"errors"
	"fmt"

	"git.home.luguber.info/inful/contentbuild/internal/content"
	"git.home.luguber.info/inful/contentbuild/internal/discovery"
)

// CacheCmd groups the cache subcommands.
type CacheCmd struct {
	Status CacheStatusCmd `cmd:"" help:"Show cache entries and how many items are stale"`
	Clear  CacheClearCmd  `cmd:"" help:"Delete the persisted build cache"`
}

// CacheStatusCmd implements 'cache status'.
type CacheStatusCmd struct{}

func (c *CacheStatusCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	ctx := context.Background()
	cache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	candidates, err := discovery.Discover(cfg.Content.BaseDir, cfg.Content.Topics, discovery.Filter{})
	if err != nil && !errors.Is(err, discovery.ErrNoContent) {
		return err
	}
	// Drafts are never cached by a default build, so leave them out.
	paths := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		if item, err := content.LoadFile(cand.Path, cand.Topic, cand.Slug); err == nil && item.IsDraft {
			continue
		}
		paths = append(paths, cand.Path)
	}
	delta := cache.ComputeDelta(paths, false)

	out := g.out()
	_, _ = fmt.Fprintf(out, "backend:    %s\n", cfg.Build.CacheBackend)
	_, _ = fmt.Fprintf(out, "directory:  %s\n", cfg.Build.CacheDir)
	_, _ = fmt.Fprintf(out, "entries:    %d\n", cache.Len())
	if lb := cache.LastBuild(); !lb.IsZero() {
		_, _ = fmt.Fprintf(out, "last build: %s\n", lb.Format("2006-01-02T15:04:05Z07:00"))
	} else {
		_, _ = fmt.Fprintln(out, "last build: never")
	}
	_, _ = fmt.Fprintf(out, "stale:      %d of %d\n", len(delta.Dirty), len(paths))
	return nil
}

// CacheClearCmd implements 'cache clear'.
type CacheClearCmd struct{}

func (c *CacheClearCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	ctx := context.Background()
	cache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	n := cache.Len()
	if err := cache.Clear(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "cleared %d cache entries\n", n)
	return nil
}
