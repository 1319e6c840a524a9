package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/contentbuild/cmd/contentbuild/commands"
	ferrors "git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/version"
)

func main() {
	var cli commands.CLI
	global := &commands.Global{Out: os.Stdout}

	ctx := kong.Parse(&cli,
		kong.Name("contentbuild"),
		kong.Description("Incremental build of markdown content into JSON, HTML, RSS and sitemap artifacts."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	if err := ctx.Run(global, &cli); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
