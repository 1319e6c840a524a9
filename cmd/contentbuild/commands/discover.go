package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"git.home.luguber.info/inful/contentbuild/internal/content"
	"git.home.luguber.info/inful/contentbuild/internal/discovery"
	"git.home.luguber.info/inful/contentbuild/internal/logfields"
)

// DiscoverCmd implements the 'discover' command.
type DiscoverCmd struct {
	Topic string `short:"t" help:"Only list items of this topic"`
	Slug  string `short:"s" help:"Only list the item with this slug"`
}

func (d *DiscoverCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	candidates, err := discovery.Discover(cfg.Content.BaseDir, cfg.Content.Topics, discovery.Filter{Topic: d.Topic, Slug: d.Slug})
	if err != nil && !errors.Is(err, discovery.ErrNoContent) {
		return err
	}

	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ITEM\tSTATUS\tTITLE\tPATH")
	for _, c := range candidates {
		status, title := "published", ""
		item, err := content.LoadFile(c.Path, c.Topic, c.Slug)
		switch {
		case err != nil:
			status = "invalid"
			slog.Debug("Item failed to parse", logfields.Path(c.Path), logfields.Error(err))
		case item.IsDraft:
			status, title = "draft", item.Title
		default:
			title = item.Title
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Key(), status, title, c.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "%d item(s)\n", len(candidates))
	return nil
}
