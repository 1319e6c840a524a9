// Package commands implements the contentbuild CLI subcommands.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/contentbuild/internal/config"
	"git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/incremental"
	"git.home.luguber.info/inful/contentbuild/internal/logfields"
	"git.home.luguber.info/inful/contentbuild/internal/storage"
	"git.home.luguber.info/inful/contentbuild/internal/templates"
)

// LogLevelEnv overrides the log level chosen by --verbose.
const LogLevelEnv = "CONTENTBUILD_LOG_LEVEL"

// Global is shared state passed to every subcommand.
type Global struct {
	// Out receives user-facing command output.
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"contentbuild.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Build changed content and regenerate sitewide artifacts"`
	Discover DiscoverCmd `cmd:"" help:"List discovered content items without building"`
	Cache    CacheCmd    `cmd:"" help:"Inspect or reset the build cache"`
	Watch    WatchCmd    `cmd:"" help:"Rebuild on content changes until interrupted"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel picks Debug for --verbose unless CONTENTBUILD_LOG_LEVEL says otherwise.
func parseLogLevel(verbose bool) slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(LogLevelEnv))) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func loadConfig(root *CLI) (*config.Config, error) {
	return config.Load(root.Config)
}

// openCache opens the configured cache store and loads its snapshot. The
// returned close function releases the store.
func openCache(ctx context.Context, cfg *config.Config) (*incremental.BuildCache, func(), error) {
	store, err := storage.Open(string(cfg.Build.CacheBackend), cfg.Build.CacheDir)
	if err != nil {
		return nil, nil, errors.WrapError(err, errors.CategoryCache, "failed to open build cache").
			Fatal().
			WithContext("backend", string(cfg.Build.CacheBackend)).
			WithContext("dir", cfg.Build.CacheDir).
			Build()
	}
	cache := incremental.NewBuildCache(store)
	cache.Load(ctx)
	closeFn := func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close cache store", logfields.Error(err))
		}
	}
	return cache, closeFn, nil
}

// loadPage returns the configured page template, or nil when none is
// configured or the file does not exist.
func loadPage(cfg *config.Config) (*templates.Page, error) {
	path := cfg.Build.Template
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Warn("Page template not found; skipping HTML output", logfields.Path(path))
		return nil, nil
	}
	page, err := templates.LoadPage(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to load page template").
			UserAction().
			WithContext("path", path).
			Build()
	}
	return page, nil
}
