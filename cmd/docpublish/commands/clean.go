package commands

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/fsops"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// CleanCmd removes the publish directory and the site builder's output.
type CleanCmd struct {
	Output string `short:"o" help:"Publish directory (overrides config)"`
}

func (c *CleanCmd) Run(cli *CLI, global *Global) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	ConfigureLogging(cfg, cli.Verbose)

	for _, dir := range []string{ResolveOutputDir(c.Output, cfg), cfg.Site.BuildDir} {
		removed, err := fsops.ClearDir(dir)
		if err != nil {
			return fmt.Errorf("failed to clean %s: %w", dir, err)
		}
		slog.Info("Cleaned directory", logfields.Path(dir), logfields.Count(removed))
	}
	return nil
}
