package commands

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// InitCmd writes a starter configuration file.
type InitCmd struct {
	Force bool `help:"Overwrite an existing configuration file"`
}

func (i *InitCmd) Run(cli *CLI, global *Global) error {
	if err := config.Init(cli.Config, i.Force); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	slog.Info("Configuration created", logfields.Path(cli.Config))
	return nil
}
