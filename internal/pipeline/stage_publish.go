package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docpublish/internal/buildinfo"
	"git.home.luguber.info/inful/docpublish/internal/fsops"
	"git.home.luguber.info/inful/docpublish/internal/linkcheck"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// buildInfoPage is the supplementary summary page shipped with the site.
const buildInfoPage = "build-info.html"

// reportFileName is written next to the publish directory, not inside it.
const reportFileName = "docpublish-report.json"

// stagePatchMarker stages the rendered site into the workspace and adds the
// hosting marker file. The builder's own output directory stays untouched so
// repeated runs start from identical state.
func stagePatchMarker(_ context.Context, bs *BuildState) error {
	staging, err := bs.Workspace.CreateSubdir("staging")
	if err != nil {
		return newFatalStageError(StagePatchMarker, fmt.Errorf("%w: %v", ErrPublish, err))
	}
	if err := fsops.CopyTree(bs.BuildDir, staging); err != nil {
		return newFatalStageError(StagePatchMarker, fmt.Errorf("%w: stage build output: %v", ErrPublish, err))
	}
	if err := fsops.WriteMarker(staging, bs.Config.Output.MarkerFile); err != nil {
		return newFatalStageError(StagePatchMarker, fmt.Errorf("%w: %v", ErrPublish, err))
	}
	bs.StagingDir = staging

	slog.Info("Marker file added to site",
		logfields.Stage(StagePatchMarker),
		logfields.File(bs.Config.Output.MarkerFile))
	return nil
}

// stageVerifyLinks scans the staged site for broken internal links. Findings
// are a warning: a site with dangling cross-references is still publishable,
// but the operator should know.
func stageVerifyLinks(_ context.Context, bs *BuildState) error {
	if bs.SkipVerify || !bs.Config.Verify.LinksEnabled() {
		slog.Debug("Link verification disabled", logfields.Stage(StageVerifyLinks))
		return nil
	}

	broken, err := linkcheck.VerifyTree(bs.StagingDir)
	if err != nil {
		return newWarnStageError(StageVerifyLinks, fmt.Errorf("%w: %v", ErrVerify, err))
	}
	bs.Report.BrokenLinks = len(broken)

	if len(broken) > 0 {
		for _, b := range broken {
			slog.Warn("Broken internal link",
				logfields.Stage(StageVerifyLinks),
				logfields.File(b.SourceFile),
				logfields.URL(b.Target))
		}
		return newWarnStageError(StageVerifyLinks, fmt.Errorf("%w: %d broken internal links", ErrVerify, len(broken)))
	}

	slog.Info("Internal links verified", logfields.Stage(StageVerifyLinks))
	return nil
}

// stageBuildInfo renders the build summary page into the staged site. The
// publish count is not known yet at this point, so the page counts the
// staged files itself, plus one for the page it is about to become.
func stageBuildInfo(_ context.Context, bs *BuildState) error {
	staged, err := fsops.CountFiles(bs.StagingDir)
	if err != nil {
		return newWarnStageError(StageBuildInfo, fmt.Errorf("count staged files: %w", err))
	}

	summary := bs.summary()
	summary.Files = staged + 1

	page, err := buildinfo.RenderHTML(summary)
	if err != nil {
		return newWarnStageError(StageBuildInfo, err)
	}
	if err := os.WriteFile(filepath.Join(bs.StagingDir, buildInfoPage), page, 0o644); err != nil {
		return newWarnStageError(StageBuildInfo, fmt.Errorf("write build info page: %w", err))
	}
	return nil
}

// stagePublish clears the publish directory and copies the staged site into
// place. This is the only destructive step and it never runs unless the
// stages producing the new site succeeded.
func stagePublish(_ context.Context, bs *BuildState) error {
	removed, err := fsops.ClearDir(bs.PublishDir)
	if err != nil {
		return newFatalStageError(StagePublish, fmt.Errorf("%w: clear publish dir: %v", ErrPublish, err))
	}
	bs.Report.EntriesRemoved = removed
	slog.Info("Cleared previous documentation",
		logfields.Stage(StagePublish),
		logfields.Path(bs.PublishDir),
		logfields.Count(removed))

	if err := fsops.CopyTree(bs.StagingDir, bs.PublishDir); err != nil {
		return newFatalStageError(StagePublish, fmt.Errorf("%w: copy site: %v", ErrPublish, err))
	}

	files, err := fsops.CountFiles(bs.PublishDir)
	if err == nil {
		bs.Report.FilesPublished = files
	}

	slog.Info("Documentation published",
		logfields.Stage(StagePublish),
		logfields.Path(bs.PublishDir),
		logfields.Count(bs.Report.FilesPublished))
	return nil
}

// stageWriteReport persists the JSON run report next to the publish directory.
func stageWriteReport(_ context.Context, bs *BuildState) error {
	path := filepath.Join(filepath.Dir(bs.PublishDir), reportFileName)
	if err := bs.Report.Persist(path); err != nil {
		return newWarnStageError(StageWriteReport, err)
	}
	slog.Info("Run report written", logfields.Stage(StageWriteReport), logfields.Path(path))
	return nil
}
