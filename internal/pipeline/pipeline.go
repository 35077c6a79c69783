// Package pipeline runs the documentation publish sequence: extract API doc
// sources, render the HTML site, patch in the hosting marker, verify links,
// then replace the published directory with the fresh build.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docpublish/internal/buildinfo"
	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/gitinfo"
	"git.home.luguber.info/inful/docpublish/internal/history"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/notify"
	"git.home.luguber.info/inful/docpublish/internal/retry"
	"git.home.luguber.info/inful/docpublish/internal/toolrunner"
	"git.home.luguber.info/inful/docpublish/internal/workspace"
)

// BuildState carries mutable state across stages.
type BuildState struct {
	RunID      string
	Config     *config.Config
	Runner     toolrunner.Runner
	Report     *Report
	Workspace  *workspace.Manager
	BuildDir   string // site builder output
	PublishDir string // final documentation directory
	StagingDir string // set by the patch_marker stage
	SkipVerify bool

	order []string // executed stage names for summary rendering
}

// summary maps the current report onto the build-info page model.
func (bs *BuildState) summary() buildinfo.Summary {
	s := buildinfo.Summary{
		RunID:        bs.RunID,
		Outcome:      string(OutcomeSuccess),
		Started:      bs.Report.Start,
		Finished:     time.Now(),
		SourceCommit: bs.Report.SourceCommit,
		SourceBranch: bs.Report.SourceBranch,
		Files:        bs.Report.FilesPublished,
		BrokenLinks:  bs.Report.BrokenLinks,
	}
	if len(bs.Report.Warnings) > 0 {
		s.Outcome = string(OutcomeWarning)
	}
	for _, name := range bs.order {
		d, ran := bs.Report.StageDurations[name]
		if !ran {
			continue
		}
		result := string(metrics.ResultSuccess)
		if kind, ok := bs.Report.StageErrorKinds[name]; ok {
			result = string(kind)
		}
		s.Stages = append(s.Stages, buildinfo.StageSummary{Name: name, Result: result, Duration: d})
	}
	return s
}

// BuildNotifier publishes run completion events.
type BuildNotifier interface {
	PublishBuildEvent(ctx context.Context, ev notify.BuildEvent) error
}

// Pipeline wires the stages with their collaborators.
type Pipeline struct {
	cfg        *config.Config
	runner     toolrunner.Runner
	recorder   metrics.Recorder
	store      *history.Store
	notifier   BuildNotifier
	publishDir string
	skipVerify bool
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRunner injects a tool runner (tests use a stub).
func WithRunner(r toolrunner.Runner) Option { return func(p *Pipeline) { p.runner = r } }

// WithRecorder injects a metrics recorder.
func WithRecorder(m metrics.Recorder) Option { return func(p *Pipeline) { p.recorder = m } }

// WithHistory injects the run-history store.
func WithHistory(s *history.Store) Option { return func(p *Pipeline) { p.store = s } }

// WithNotifier injects a build-event publisher.
func WithNotifier(n BuildNotifier) Option { return func(p *Pipeline) { p.notifier = n } }

// WithPublishDir overrides the configured publish directory.
func WithPublishDir(dir string) Option { return func(p *Pipeline) { p.publishDir = dir } }

// WithSkipVerify disables the link verification stage.
func WithSkipVerify(skip bool) Option { return func(p *Pipeline) { p.skipVerify = skip } }

// New creates a pipeline for the given configuration.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		recorder:   metrics.NoopRecorder{},
		publishDir: cfg.Output.Directory,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.runner == nil {
		p.runner = toolrunner.NewExecRunner(retry.FromConfig(cfg.Retry)).
			WithRetryNotify(p.recorder.IncToolRetry)
	}
	return p
}

// Run executes the full publish sequence once. The returned report is always
// populated, also on failure.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	report := newReport(runID)

	slog.Info("Starting publish run",
		logfields.RunID(runID),
		logfields.Path(p.cfg.Source.Package),
		slog.String("publish_dir", p.publishDir))

	// Best-effort source revision stamp; undocumented trees are fine.
	if rev, err := gitinfo.Stamp(p.cfg.Source.Package); err == nil {
		report.SourceCommit = rev.Commit
		report.SourceBranch = rev.Branch
	} else {
		slog.Debug("Source revision unavailable", logfields.Error(err))
	}

	ws := workspace.NewManager("")
	if err := ws.Create(); err != nil {
		report.End = time.Now()
		report.deriveOutcome(err)
		return report, err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			slog.Warn("Failed to cleanup workspace", logfields.Error(err))
		}
	}()

	bs := &BuildState{
		RunID:      runID,
		Config:     p.cfg,
		Runner:     p.runner,
		Report:     report,
		Workspace:  ws,
		BuildDir:   p.cfg.Site.BuildDir,
		PublishDir: p.publishDir,
		SkipVerify: p.skipVerify,
	}

	stages := []namedStage{
		{StageExtract, stageExtractAPIDocs},
		{StageRender, stageRenderSite},
		{StagePatchMarker, stagePatchMarker},
		{StageVerifyLinks, stageVerifyLinks},
		{StageBuildInfo, stageBuildInfo},
		{StagePublish, stagePublish},
		{StageWriteReport, stageWriteReport},
	}
	for _, st := range stages {
		bs.order = append(bs.order, st.name)
	}

	err := runStages(ctx, bs, stages)
	report.End = time.Now()
	report.deriveOutcome(err)

	p.emitMetrics(report)
	p.recordHistory(ctx, report)
	p.publishEvent(ctx, report)

	slog.Info("Publish run finished",
		logfields.RunID(runID),
		logfields.Outcome(string(report.Outcome)),
		logfields.DurationMS(float64(report.Duration().Milliseconds())))

	return report, err
}

func (p *Pipeline) emitMetrics(report *Report) {
	for stage, d := range report.StageDurations {
		p.recorder.ObserveStageDuration(stage, d)
	}
	for stage, counts := range report.StageCounts {
		for i := 0; i < counts.Success; i++ {
			p.recorder.IncStageResult(stage, metrics.ResultSuccess)
		}
		for i := 0; i < counts.Warning; i++ {
			p.recorder.IncStageResult(stage, metrics.ResultWarning)
		}
		for i := 0; i < counts.Fatal; i++ {
			p.recorder.IncStageResult(stage, metrics.ResultFatal)
		}
		for i := 0; i < counts.Canceled; i++ {
			p.recorder.IncStageResult(stage, metrics.ResultCanceled)
		}
	}
	p.recorder.ObserveRunDuration(report.Duration())
	p.recorder.IncRunOutcome(string(report.Outcome))
	p.recorder.SetBrokenLinks(report.BrokenLinks)
	p.recorder.SetPublishedFiles(report.FilesPublished)
}

func (p *Pipeline) recordHistory(ctx context.Context, report *Report) {
	if p.store == nil {
		return
	}
	data, err := report.MarshalJSON()
	if err != nil {
		slog.Warn("Failed to serialize report for history", logfields.Error(err))
		return
	}
	rec := history.RunRecord{
		ID:          report.RunID,
		Started:     report.Start,
		DurationMS:  report.Duration().Milliseconds(),
		Outcome:     string(report.Outcome),
		Files:       report.FilesPublished,
		BrokenLinks: report.BrokenLinks,
		Report:      data,
	}
	if err := p.store.RecordRun(ctx, rec); err != nil {
		slog.Warn("Failed to record run history", logfields.Error(err))
		return
	}
	if removed, err := p.store.Prune(ctx, p.cfg.History.Keep); err != nil {
		slog.Warn("Failed to prune run history", logfields.Error(err))
	} else if removed > 0 {
		slog.Debug("Pruned run history", logfields.Count(removed))
	}
}

func (p *Pipeline) publishEvent(ctx context.Context, report *Report) {
	if p.notifier == nil {
		return
	}
	ev := notify.BuildEvent{
		RunID:        report.RunID,
		Outcome:      string(report.Outcome),
		Files:        report.FilesPublished,
		BrokenLinks:  report.BrokenLinks,
		SourceCommit: report.SourceCommit,
		Started:      report.Start,
		Finished:     report.End,
	}
	if err := p.notifier.PublishBuildEvent(ctx, ev); err != nil {
		slog.Warn("Failed to publish build event", logfields.Error(err))
	}
}
