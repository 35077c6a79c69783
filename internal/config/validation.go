package config

import (
	"fmt"
	"time"
)

// Validate checks structural invariants after defaults were applied.
func (c *Config) Validate() error {
	if c.Source.Package == "" {
		return fmt.Errorf("source.package is required")
	}
	if c.Output.Directory == "" {
		return fmt.Errorf("output.directory is required")
	}
	if c.Output.Directory == c.Site.BuildDir {
		return fmt.Errorf("output.directory must differ from site.build_dir (%s)", c.Site.BuildDir)
	}
	for name, raw := range map[string]string{
		"retry.initial":   c.Retry.Initial,
		"retry.max":       c.Retry.Max,
		"watch.debounce":  c.Watch.Debounce,
		"daemon.interval": c.Daemon.Interval,
	} {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", name, raw)
		}
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative")
	}
	if c.Notify.Enabled && c.Notify.URL == "" {
		return fmt.Errorf("notify.url is required when notify.enabled is true")
	}
	return nil
}

// WatchDebounce returns the parsed watch debounce window.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// DaemonInterval returns the parsed scheduled-build interval.
func (c *Config) DaemonInterval() time.Duration {
	d, err := time.ParseDuration(c.Daemon.Interval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}
