package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/history"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/notify"
	"git.home.luguber.info/inful/docpublish/internal/pipeline"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docpublish.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Generate API docs, build the HTML site and publish it"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	Clean   CleanCmd   `cmd:"" help:"Remove the publish and build directories"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild and republish whenever the source package changes"`
	Daemon  DaemonCmd  `cmd:"" help:"Run scheduled publishes with a metrics endpoint"`
	History HistoryCmd `cmd:"" help:"Inspect past publish runs"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// ConfigureLogging re-applies the logging section from config; the verbose
// flag always wins for level.
func ConfigureLogging(cfg *config.Config, verbose bool) {
	level := slog.LevelInfo
	switch config.NormalizeLogLevel(cfg.Logging.Level) {
	case config.LogLevelDebug:
		level = slog.LevelDebug
	case config.LogLevelWarn:
		level = slog.LevelWarn
	case config.LogLevelError:
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if config.NormalizeLogFormat(cfg.Logging.Format) == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// ResolveOutputDir determines the final publish directory.
// Priority: CLI flag > configured directory.
func ResolveOutputDir(cliOutput string, cfg *config.Config) string {
	if cliOutput != "" {
		return cliOutput
	}
	return cfg.Output.Directory
}

// NewPipeline wires a pipeline with the optional collaborators the config
// enables (history store, NATS notifier). The returned cleanup closes them.
func NewPipeline(cfg *config.Config, extra ...pipeline.Option) (*pipeline.Pipeline, func(), error) {
	opts := extra
	closers := []func(){}

	if cfg.History.StoreEnabled() {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithHistory(store))
		closers = append(closers, func() {
			if err := store.Close(); err != nil {
				slog.Warn("Failed to close history store", logfields.Error(err))
			}
		})
	}

	if cfg.Notify.Enabled {
		publisher, err := notify.NewPublisher(cfg.Notify)
		if err != nil {
			// Notifications are auxiliary; a missing broker must not block publishing.
			slog.Warn("Notifications unavailable", logfields.Error(err))
		} else {
			opts = append(opts, pipeline.WithNotifier(publisher))
			closers = append(closers, publisher.Close)
		}
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return pipeline.New(cfg, opts...), cleanup, nil
}
