package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/daemon"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/pipeline"
)

// DaemonCmd runs docpublish as a long-lived service: periodic publish runs
// plus a Prometheus metrics endpoint.
type DaemonCmd struct {
	Output     string `short:"o" help:"Publish directory (overrides config)"`
	SkipVerify bool   `help:"Skip internal link verification"`
}

func (d *DaemonCmd) Run(cli *CLI, global *Global) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	ConfigureLogging(cfg, cli.Verbose)

	registry := prom.NewRegistry()
	opts := []pipeline.Option{
		pipeline.WithPublishDir(ResolveOutputDir(d.Output, cfg)),
		pipeline.WithSkipVerify(d.SkipVerify),
		pipeline.WithRecorder(metrics.NewPrometheusRecorder(registry)),
	}
	pipe, cleanup, err := NewPipeline(cfg, opts...)
	if err != nil {
		return err
	}
	defer cleanup()

	svc, err := daemon.New(cfg, pipe, registry)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return svc.Stop(shutdownCtx)
}
