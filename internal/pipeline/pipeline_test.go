package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/history"
	"git.home.luguber.info/inful/docpublish/internal/notify"
	"git.home.luguber.info/inful/docpublish/internal/toolrunner"
)

// stubRunner simulates the external tools by writing files, so pipeline tests
// exercise the real filesystem stages without sphinx installed.
type stubRunner struct {
	calls []toolrunner.Invocation
	onRun func(inv toolrunner.Invocation) error
}

func (s *stubRunner) Run(_ context.Context, inv toolrunner.Invocation) error {
	s.calls = append(s.calls, inv)
	if s.onRun != nil {
		return s.onRun(inv)
	}
	return nil
}

type testEnv struct {
	cfg    *config.Config
	runner *stubRunner
	root   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()

	cfg := &config.Config{
		Source: config.SourceConfig{
			Package: filepath.Join(root, "pkg"),
			DocsDir: filepath.Join(root, "docsrc"),
		},
		APIDoc: config.APIDocConfig{Command: "sphinx-apidoc"},
		Site: config.SiteConfig{
			Command:  "sphinx-build",
			Builder:  "html",
			BuildDir: filepath.Join(root, "_build", "html"),
		},
		Output: config.OutputConfig{
			Directory:  filepath.Join(root, "docs"),
			MarkerFile: ".nojekyll",
		},
		History: config.HistoryConfig{Keep: 10},
	}
	require.NoError(t, os.MkdirAll(cfg.Source.Package, 0o755))

	env := &testEnv{cfg: cfg, root: root}
	env.runner = &stubRunner{onRun: func(inv toolrunner.Invocation) error {
		switch inv.Name {
		case "apidoc":
			return writeFiles(cfg.Source.DocsDir, map[string]string{
				"index.rst": "foo",
				"foo.rst":   ".. automodule:: foo",
			})
		case "sitebuilder":
			return writeFiles(cfg.Site.BuildDir, map[string]string{
				"index.html":         `<html><body><a href="foo.html">foo.bar</a></body></html>`,
				"foo.html":           `<html><body>foo.bar</body></html>`,
				"_static/styles.css": "body{}",
			})
		}
		return nil
	}}
	return env
}

func writeFiles(dir string, files map[string]string) error {
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func TestRun_PublishesBuildOutputPlusMarker(t *testing.T) {
	env := newTestEnv(t)
	p := New(env.cfg, WithRunner(env.runner))

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, report.Outcome)

	want := append(listFiles(t, env.cfg.Site.BuildDir), ".nojekyll", buildInfoPage)
	sort.Strings(want)
	require.Equal(t, want, listFiles(t, env.cfg.Output.Directory))

	// Shared files are byte-identical with the build output.
	for _, rel := range listFiles(t, env.cfg.Site.BuildDir) {
		src, err := os.ReadFile(filepath.Join(env.cfg.Site.BuildDir, rel))
		require.NoError(t, err)
		dst, err := os.ReadFile(filepath.Join(env.cfg.Output.Directory, rel))
		require.NoError(t, err)
		require.Equal(t, src, dst, rel)
	}

	// The marker is zero bytes at the publish root.
	info, err := os.Stat(filepath.Join(env.cfg.Output.Directory, ".nojekyll"))
	require.NoError(t, err)
	require.Zero(t, info.Size())

	// All stages ran and were timed.
	for _, stage := range []string{StageExtract, StageRender, StagePatchMarker, StageVerifyLinks, StageBuildInfo, StagePublish, StageWriteReport} {
		require.Contains(t, report.StageDurations, stage)
		require.Equal(t, 1, report.StageCounts[stage].Success, stage)
	}

	// The JSON report lands next to the publish dir, not inside it.
	_, err = os.Stat(filepath.Join(env.root, reportFileName))
	require.NoError(t, err)
}

func TestRun_ToolOrderAndArguments(t *testing.T) {
	env := newTestEnv(t)
	p := New(env.cfg, WithRunner(env.runner))

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, env.runner.calls, 2)
	require.Equal(t, "apidoc", env.runner.calls[0].Name)
	require.Equal(t, "sitebuilder", env.runner.calls[1].Name)

	apidoc := env.runner.calls[0]
	require.Equal(t, "sphinx-apidoc", apidoc.Command)
	require.Contains(t, apidoc.Args, "--force")
	require.Contains(t, apidoc.Args, "--separate")
	require.Contains(t, apidoc.Args, "--ext-autodoc")
	require.Contains(t, apidoc.Args, env.cfg.Source.Package)

	site := env.runner.calls[1]
	require.Equal(t, []string{"-b", "html", env.cfg.Source.DocsDir, env.cfg.Site.BuildDir}, site.Args)
}

func TestRun_BuildInfoPageCountsPublishedFiles(t *testing.T) {
	env := newTestEnv(t)
	p := New(env.cfg, WithRunner(env.runner))

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	// 3 rendered files + marker + the page itself.
	require.Equal(t, 5, report.FilesPublished)

	page, err := os.ReadFile(filepath.Join(env.cfg.Output.Directory, buildInfoPage))
	require.NoError(t, err)
	require.Contains(t, string(page), fmt.Sprintf("Files published: %d", report.FilesPublished))
	require.NotContains(t, string(page), "Files published: 0")
}

func TestRun_RemovesStaleEntriesFromPublishDir(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, writeFiles(env.cfg.Output.Directory, map[string]string{
		"leftover.html":      "old",
		"stale/old-page.txt": "old",
	}))

	p := New(env.cfg, WithRunner(env.runner))
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.EntriesRemoved)

	files := listFiles(t, env.cfg.Output.Directory)
	require.NotContains(t, files, "leftover.html")
	require.NotContains(t, files, "stale/old-page.txt")
}

func TestRun_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	p := New(env.cfg, WithRunner(env.runner))

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	first := listFiles(t, env.cfg.Output.Directory)

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	second := listFiles(t, env.cfg.Output.Directory)

	require.Equal(t, first, second)
}

func TestRun_RenderFailureLeavesPublishDirUntouched(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, writeFiles(env.cfg.Output.Directory, map[string]string{
		"existing.html": "previous publish",
	}))

	base := env.runner.onRun
	env.runner.onRun = func(inv toolrunner.Invocation) error {
		if inv.Name == "sitebuilder" {
			return &toolrunner.ExitError{Tool: "sitebuilder", Code: 2}
		}
		return base(inv)
	}

	p := New(env.cfg, WithRunner(env.runner))
	report, err := p.Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrRender)
	require.Equal(t, OutcomeFailed, report.Outcome)

	// The destructive publish step never ran.
	data, readErr := os.ReadFile(filepath.Join(env.cfg.Output.Directory, "existing.html"))
	require.NoError(t, readErr)
	require.Equal(t, "previous publish", string(data))
}

func TestRun_ExtractFailureAbortsBeforeRender(t *testing.T) {
	env := newTestEnv(t)
	env.runner.onRun = func(inv toolrunner.Invocation) error {
		return &toolrunner.ExitError{Tool: inv.Name, Code: 1}
	}

	p := New(env.cfg, WithRunner(env.runner))
	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, ErrExtract)
	require.Len(t, env.runner.calls, 1)
}

func TestRun_BrokenLinksYieldWarningOutcome(t *testing.T) {
	env := newTestEnv(t)
	base := env.runner.onRun
	env.runner.onRun = func(inv toolrunner.Invocation) error {
		if inv.Name == "sitebuilder" {
			return writeFiles(env.cfg.Site.BuildDir, map[string]string{
				"index.html": `<html><body><a href="missing.html">gone</a></body></html>`,
			})
		}
		return base(inv)
	}

	p := New(env.cfg, WithRunner(env.runner))
	report, err := p.Run(context.Background())
	require.NoError(t, err, "broken links must not abort the publish")
	require.Equal(t, OutcomeWarning, report.Outcome)
	require.Equal(t, 1, report.BrokenLinks)

	// Site is still published despite the warning.
	_, statErr := os.Stat(filepath.Join(env.cfg.Output.Directory, "index.html"))
	require.NoError(t, statErr)
}

func TestRun_SkipVerify(t *testing.T) {
	env := newTestEnv(t)
	base := env.runner.onRun
	env.runner.onRun = func(inv toolrunner.Invocation) error {
		if inv.Name == "sitebuilder" {
			return writeFiles(env.cfg.Site.BuildDir, map[string]string{
				"index.html": `<html><body><a href="missing.html">gone</a></body></html>`,
			})
		}
		return base(inv)
	}

	p := New(env.cfg, WithRunner(env.runner), WithSkipVerify(true))
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, report.Outcome)
	require.Zero(t, report.BrokenLinks)
}

func TestRun_CanceledContext(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(env.cfg, WithRunner(env.runner))
	report, err := p.Run(ctx)
	require.Error(t, err)
	require.Equal(t, OutcomeCanceled, report.Outcome)
	require.Empty(t, env.runner.calls)
}

func TestRun_RecordsHistory(t *testing.T) {
	env := newTestEnv(t)
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	p := New(env.cfg, WithRunner(env.runner), WithHistory(store))
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	rec, err := store.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	require.Equal(t, string(OutcomeSuccess), rec.Outcome)
	require.Equal(t, report.FilesPublished, rec.Files)
	require.NotEmpty(t, rec.Report)
}

type captureNotifier struct {
	events []notify.BuildEvent
}

func (c *captureNotifier) PublishBuildEvent(_ context.Context, ev notify.BuildEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func TestRun_PublishesBuildEvent(t *testing.T) {
	env := newTestEnv(t)
	notifier := &captureNotifier{}

	p := New(env.cfg, WithRunner(env.runner), WithNotifier(notifier))
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, notifier.events, 1)
	ev := notifier.events[0]
	require.Equal(t, report.RunID, ev.RunID)
	require.Equal(t, string(OutcomeSuccess), ev.Outcome)
	require.Equal(t, report.FilesPublished, ev.Files)
}
