package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/toolrunner"
)

// stageExtractAPIDocs regenerates the documentation sources from the code
// package. Overwrite is forced, modules are emitted separately and the
// autodoc extension is enabled so the extracted tree always reflects the
// current package structure.
func stageExtractAPIDocs(ctx context.Context, bs *BuildState) error {
	cfg := bs.Config

	args := []string{
		"-o", cfg.Source.DocsDir,
		cfg.Source.Package,
		"--force",
		"--separate",
		"--ext-autodoc",
	}
	args = append(args, cfg.APIDoc.ExtraArgs...)

	inv := toolrunner.Invocation{
		Name:      "apidoc",
		Command:   cfg.APIDoc.Command,
		Args:      args,
		Retryable: cfg.Retry.MaxRetries > 0,
	}
	if err := bs.Runner.Run(ctx, inv); err != nil {
		return newFatalStageError(StageExtract, fmt.Errorf("%w: %v", ErrExtract, err))
	}

	slog.Info("API documentation sources generated",
		logfields.Stage(StageExtract),
		logfields.Path(cfg.Source.Package))
	return nil
}

// stageRenderSite renders the extracted doc sources into static HTML using
// the configured site builder.
func stageRenderSite(ctx context.Context, bs *BuildState) error {
	cfg := bs.Config

	args := []string{"-b", cfg.Site.Builder}
	args = append(args, cfg.Site.ExtraArgs...)
	args = append(args, cfg.Source.DocsDir, bs.BuildDir)

	inv := toolrunner.Invocation{
		Name:      "sitebuilder",
		Command:   cfg.Site.Command,
		Args:      args,
		Retryable: cfg.Retry.MaxRetries > 0,
	}
	if err := bs.Runner.Run(ctx, inv); err != nil {
		return newFatalStageError(StageRender, fmt.Errorf("%w: %v", ErrRender, err))
	}

	slog.Info("HTML site rendered",
		logfields.Stage(StageRender),
		logfields.Path(bs.BuildDir))
	return nil
}
