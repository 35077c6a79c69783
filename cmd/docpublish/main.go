package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docpublish/cmd/docpublish/commands"
	"git.home.luguber.info/inful/docpublish/internal/version"
)

func main() {
	cli := commands.CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("docpublish"),
		kong.Description("Generate API documentation, build the HTML site and publish it."),
		kong.UsageOnError(),
		kong.Vars{"version": fmt.Sprintf("%s (commit %s, built %s)", version.Version, version.GitCommit, version.BuildTime)},
	)

	if err := ctx.Run(&cli, &commands.Global{Logger: slog.Default()}); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
