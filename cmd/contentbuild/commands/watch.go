package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/contentbuild/internal/build"
	"git.home.luguber.info/inful/contentbuild/internal/discovery"
	"git.home.luguber.info/inful/contentbuild/internal/metrics"
	"git.home.luguber.info/inful/contentbuild/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Output        string `short:"o" help:"Output directory (overrides build.output_dir)" type:"path"`
	IncludeDrafts bool   `name:"include-drafts" help:"Build draft items too"`
	MetricsAddr   string `name:"metrics-addr" help:"Serve Prometheus metrics on this address (overrides watch.metrics_addr)"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	page, err := loadPage(cfg)
	if err != nil {
		return err
	}

	reg := prom.NewRegistry()
	svc := build.NewService(cfg, cache).
		WithPage(page).
		WithRecorder(metrics.NewPrometheusRecorder(reg))

	dirs := []string{cfg.Content.BaseDir}
	if cfg.Build.Template != "" {
		dirs = append(dirs, filepath.Dir(cfg.Build.Template))
	}
	addr := cfg.Watch.MetricsAddr
	if w.MetricsAddr != "" {
		addr = w.MetricsAddr
	}

	slog.Info("Starting watch mode",
		slog.String("content", cfg.Content.BaseDir),
		slog.Duration("debounce", cfg.Watch.Debounce),
		slog.Duration("refresh", cfg.Watch.RefreshInterval))

	return watch.New(svc, watch.Options{
		Dirs: dirs,
		Request: build.Request{
			Filter:        discovery.Filter{},
			IncludeDrafts: w.IncludeDrafts,
			OutputDir:     w.Output,
		},
		Debounce:        cfg.Watch.Debounce,
		RefreshInterval: cfg.Watch.RefreshInterval,
		MetricsAddr:     addr,
		Registry:        reg,
	}).Run(ctx)
}
