// Package daemon runs docpublish as a long-lived service: periodic publish
// runs on a schedule, with a Prometheus metrics endpoint.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/pipeline"
)

// Daemon owns the scheduler and the metrics HTTP server.
type Daemon struct {
	cfg       *config.Config
	pipe      *pipeline.Pipeline
	scheduler *Scheduler
	registry  *prom.Registry
	server    *http.Server

	mu      sync.Mutex
	running bool
}

// New creates a daemon around an already-wired pipeline. The registry must be
// the one the pipeline's recorder registers into.
func New(cfg *config.Config, pipe *pipeline.Pipeline, registry *prom.Registry) (*Daemon, error) {
	scheduler, err := NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Daemon{
		cfg:       cfg,
		pipe:      pipe,
		scheduler: scheduler,
		registry:  registry,
	}, nil
}

// Start schedules periodic runs and serves metrics. It returns once startup
// is complete; Stop shuts everything down.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("daemon already running")
	}

	interval := d.cfg.DaemonInterval()
	if _, err := d.scheduler.SchedulePeriodicRun(interval, func() {
		if _, err := d.pipe.Run(ctx); err != nil {
			slog.Error("Scheduled publish run failed", logfields.Error(err))
		}
	}); err != nil {
		return err
	}
	d.scheduler.Start()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	d.server = &http.Server{
		Addr:              d.cfg.Daemon.MetricsListen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Metrics endpoint listening", slog.String("addr", d.cfg.Daemon.MetricsListen))
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()

	d.running = true
	slog.Info("Daemon started", slog.Duration("interval", interval))

	// One publish immediately on startup; the schedule covers the rest.
	go func() {
		if _, err := d.pipe.Run(ctx); err != nil {
			slog.Error("Initial publish run failed", logfields.Error(err))
		}
	}()

	return nil
}

// Stop shuts down the scheduler and the metrics server.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}

	var firstErr error
	if err := d.scheduler.Stop(); err != nil {
		firstErr = err
	}
	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	d.running = false
	slog.Info("Daemon stopped")
	return firstErr
}
