package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	APIDoc  APIDocConfig  `yaml:"apidoc"`
	Site    SiteConfig    `yaml:"site"`
	Output  OutputConfig  `yaml:"output"`
	Verify  VerifyConfig  `yaml:"verify"`
	Retry   RetryConfig   `yaml:"retry"`
	Logging LoggingConfig `yaml:"logging"`
	History HistoryConfig `yaml:"history"`
	Watch   WatchConfig   `yaml:"watch"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// SourceConfig points at the code package whose API is documented.
type SourceConfig struct {
	Package string `yaml:"package"`            // path to the documented package tree
	DocsDir string `yaml:"docs_dir,omitempty"` // where extracted doc sources land
}

// APIDocConfig describes the API-doc extraction tool invocation.
// Force overwrite, separate-module generation and the autodoc extension are
// always on; the extracted sources must be regenerated in full on every run.
type APIDocConfig struct {
	Command   string   `yaml:"command,omitempty"`
	ExtraArgs []string `yaml:"extra_args,omitempty"`
}

// SiteConfig describes the static-site builder invocation.
type SiteConfig struct {
	Command   string   `yaml:"command,omitempty"`
	Builder   string   `yaml:"builder,omitempty"`   // builder target, conventionally "html"
	BuildDir  string   `yaml:"build_dir,omitempty"` // where rendered HTML lands
	ExtraArgs []string `yaml:"extra_args,omitempty"`
}

// OutputConfig represents the published documentation directory.
type OutputConfig struct {
	Directory  string `yaml:"directory"`
	MarkerFile string `yaml:"marker_file,omitempty"`
}

// VerifyConfig toggles post-render verification of the built site.
type VerifyConfig struct {
	Links *bool `yaml:"links,omitempty"` // nil means enabled
}

// LinksEnabled reports whether link verification should run.
func (v VerifyConfig) LinksEnabled() bool { return v.Links == nil || *v.Links }

// RetryConfig holds backoff settings for tool invocations. Durations are
// strings in time.ParseDuration format, validated during Load.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode,omitempty"`
	Initial    string           `yaml:"initial,omitempty"`
	Max        string           `yaml:"max,omitempty"`
	MaxRetries int              `yaml:"max_retries,omitempty"`
}

// LoggingConfig controls slog handler selection.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// HistoryConfig controls the SQLite run-history store.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // nil means enabled
	Path    string `yaml:"path,omitempty"`
	Keep    int    `yaml:"keep,omitempty"` // runs retained after pruning
}

// StoreEnabled reports whether run history should be recorded.
func (h HistoryConfig) StoreEnabled() bool { return h.Enabled == nil || *h.Enabled }

// WatchConfig controls watch-mode rebuild triggering.
type WatchConfig struct {
	Debounce string   `yaml:"debounce,omitempty"`
	Paths    []string `yaml:"paths,omitempty"` // additional paths beyond source.package
}

// DaemonConfig controls scheduled builds and the metrics endpoint.
type DaemonConfig struct {
	Interval      string `yaml:"interval,omitempty"`
	MetricsListen string `yaml:"metrics_listen,omitempty"`
}

// NotifyConfig controls optional NATS build-event publishing.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env files if present; existing process env wins.
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// loadEnvFiles loads environment variables from .env/.env.local, stopping at
// the first file that parses. Existing process variables are not overwritten.
func loadEnvFiles() {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err == nil {
			fmt.Fprintf(os.Stderr, "Loaded environment variables from %s\n", envPath)
			return
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Source.DocsDir == "" {
		c.Source.DocsDir = "."
	}
	if c.APIDoc.Command == "" {
		c.APIDoc.Command = "sphinx-apidoc"
	}
	if c.Site.Command == "" {
		c.Site.Command = "sphinx-build"
	}
	if c.Site.Builder == "" {
		c.Site.Builder = "html"
	}
	if c.Site.BuildDir == "" {
		c.Site.BuildDir = filepath.Join("_build", "html")
	}
	if c.Output.MarkerFile == "" {
		c.Output.MarkerFile = ".nojekyll"
	}
	if c.Retry.Mode == "" {
		c.Retry.Mode = RetryBackoffLinear
	}
	if c.Retry.Initial == "" {
		c.Retry.Initial = "1s"
	}
	if c.Retry.Max == "" {
		c.Retry.Max = "30s"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = string(LogLevelInfo)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = string(LogFormatText)
	}
	if c.History.Path == "" {
		c.History.Path = "docpublish.db"
	}
	if c.History.Keep <= 0 {
		c.History.Keep = 50
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = "2s"
	}
	if c.Daemon.Interval == "" {
		c.Daemon.Interval = "1h"
	}
	if c.Daemon.MetricsListen == "" {
		c.Daemon.MetricsListen = ":9190"
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = "docpublish.builds"
	}
}

const exampleConfig = `# docpublish configuration
source:
  package: ../../mypackage
  docs_dir: .

apidoc:
  command: sphinx-apidoc
  # extra_args: ["--no-toc"]

site:
  command: sphinx-build
  builder: html
  build_dir: _build/html

output:
  directory: ../../docs
  marker_file: .nojekyll

verify:
  links: true

logging:
  level: info
  format: text

history:
  enabled: true
  path: docpublish.db
  keep: 50

# daemon:
#   interval: 1h
#   metrics_listen: ":9190"

# notify:
#   enabled: true
#   url: nats://localhost:4222
#   subject: docpublish.builds
`

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
