package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Stage names, in execution order.
const (
	StageExtract     = "extract_api_docs"
	StageRender      = "render_site"
	StagePatchMarker = "patch_marker"
	StageVerifyLinks = "verify_links"
	StageBuildInfo   = "build_info"
	StagePublish     = "publish"
	StageWriteReport = "write_report"
)

// Stage is a discrete unit of work in the publish run.
type Stage func(ctx context.Context, bs *BuildState) error

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Run must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Helpers to classify errors.
func newFatalStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}
func newWarnStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}
func newCanceledStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

type namedStage struct {
	name string
	fn   Stage
}

// runStages executes stages in order, recording timing and stopping on first fatal error.
func runStages(ctx context.Context, bs *BuildState, stages []namedStage) error {
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(st.name, ctx.Err())
			bs.Report.recordError(st.name, se)
			return se
		default:
		}

		t0 := time.Now()
		err := st.fn(ctx, bs)
		bs.Report.StageDurations[st.name] = time.Since(t0)

		if err == nil {
			bs.Report.recordSuccess(st.name)
			continue
		}

		var se *StageError
		if !errors.As(err, &se) {
			// Wrap unknown errors as fatal by default.
			se = newFatalStageError(st.name, err)
		}
		bs.Report.recordError(st.name, se)
		if se.Kind == StageErrorWarning {
			continue
		}
		return se
	}
	return nil
}
