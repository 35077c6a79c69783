package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docpublish.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  package: ./pkg
output:
  directory: ./docs
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "sphinx-apidoc", cfg.APIDoc.Command)
	require.Equal(t, "sphinx-build", cfg.Site.Command)
	require.Equal(t, "html", cfg.Site.Builder)
	require.Equal(t, filepath.Join("_build", "html"), cfg.Site.BuildDir)
	require.Equal(t, ".nojekyll", cfg.Output.MarkerFile)
	require.Equal(t, ".", cfg.Source.DocsDir)
	require.True(t, cfg.Verify.LinksEnabled())
	require.True(t, cfg.History.StoreEnabled())
	require.Equal(t, 50, cfg.History.Keep)
	require.Equal(t, "docpublish.builds", cfg.Notify.Subject)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("DOCS_ROOT", "/srv/docs")
	path := writeConfig(t, `
source:
  package: ./pkg
output:
  directory: ${DOCS_ROOT}/site
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/docs/site", cfg.Output.Directory)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestLoad_RejectsMissingSourcePackage(t *testing.T) {
	path := writeConfig(t, `
output:
  directory: ./docs
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "source.package")
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
source:
  package: ./pkg
output:
  directory: ./docs
retry:
  initial: soon
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "retry.initial")
}

func TestLoad_RejectsOutputEqualBuildDir(t *testing.T) {
	path := writeConfig(t, `
source:
  package: ./pkg
site:
  build_dir: ./out
output:
  directory: ./out
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_NotifyRequiresURL(t *testing.T) {
	path := writeConfig(t, `
source:
  package: ./pkg
output:
  directory: ./docs
notify:
  enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "notify.url")
}

func TestVerifyLinksExplicitDisable(t *testing.T) {
	path := writeConfig(t, `
source:
  package: ./pkg
output:
  directory: ./docs
verify:
  links: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.False(t, cfg.Verify.LinksEnabled())
}

func TestInit_CreatesAndRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docpublish.yaml")

	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sphinx-apidoc", cfg.APIDoc.Command)

	err = Init(path, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "--force")

	require.NoError(t, Init(path, true))
}

func TestNormalizers(t *testing.T) {
	require.Equal(t, LogLevelDebug, NormalizeLogLevel("DEBUG"))
	require.Equal(t, LogLevelWarn, NormalizeLogLevel("warning"))
	require.Equal(t, LogLevelInfo, NormalizeLogLevel("bogus"))
	require.Equal(t, LogFormatJSON, NormalizeLogFormat("JSON"))
	require.Equal(t, LogFormatText, NormalizeLogFormat(""))
	require.Equal(t, RetryBackoffExponential, NormalizeRetryBackoffMode("exp"))
	require.Equal(t, RetryBackoffLinear, NormalizeRetryBackoffMode("whatever"))
}
