package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/pipeline"
	"git.home.luguber.info/inful/docpublish/internal/watch"
)

// WatchCmd republishes whenever the source package changes on disk.
type WatchCmd struct {
	Output     string `short:"o" help:"Publish directory (overrides config)"`
	SkipVerify bool   `help:"Skip internal link verification"`
}

func (w *WatchCmd) Run(cli *CLI, global *Global) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	ConfigureLogging(cfg, cli.Verbose)

	opts := []pipeline.Option{
		pipeline.WithPublishDir(ResolveOutputDir(w.Output, cfg)),
		pipeline.WithSkipVerify(w.SkipVerify),
	}
	pipe, cleanup, err := NewPipeline(cfg, opts...)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	paths := append([]string{cfg.Source.Package}, cfg.Watch.Paths...)
	// Everything the pipeline writes must be invisible to the watcher or
	// each publish would trigger the next.
	ignore := []string{cfg.Source.DocsDir, cfg.Site.BuildDir, ResolveOutputDir(w.Output, cfg)}

	watcher, err := watch.New(paths, ignore, cfg.WatchDebounce(), func(ctx context.Context) {
		if _, err := pipe.Run(ctx); err != nil {
			slog.Error("Publish run failed", logfields.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Publish once up front so the output exists before the first change.
	if _, err := pipe.Run(ctx); err != nil {
		slog.Error("Initial publish run failed", logfields.Error(err))
	}

	slog.Info("Watching for changes", logfields.Path(cfg.Source.Package))
	return watcher.Start(ctx)
}
