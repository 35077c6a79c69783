package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/pipeline"
)

// BuildCmd runs one full publish: extract API docs, render the site and copy
// the result into the publish directory.
type BuildCmd struct {
	Output     string `short:"o" help:"Publish directory (overrides config)"`
	Pause      bool   `help:"Wait for Enter before exiting"`
	SkipVerify bool   `help:"Skip internal link verification"`
}

func (b *BuildCmd) Run(cli *CLI, global *Global) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	ConfigureLogging(cfg, cli.Verbose)

	opts := []pipeline.Option{
		pipeline.WithPublishDir(ResolveOutputDir(b.Output, cfg)),
		pipeline.WithSkipVerify(b.SkipVerify),
	}
	pipe, cleanup, err := NewPipeline(cfg, opts...)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := pipe.Run(context.Background())
	if report != nil {
		slog.Info("Publish finished",
			logfields.RunID(report.RunID),
			logfields.Outcome(string(report.Outcome)),
			logfields.Count(report.FilesPublished),
			logfields.DurationMS(float64(report.Duration().Milliseconds())))
	}

	if b.Pause {
		fmt.Fprint(os.Stdout, "Press Enter to continue...")
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
	}

	return err
}
