package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Outcome is the typed enumeration of final run result states.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// StageCount tracks per-stage result classifications.
type StageCount struct {
	Success  int `json:"success,omitempty"`
	Warning  int `json:"warning,omitempty"`
	Fatal    int `json:"fatal,omitempty"`
	Canceled int `json:"canceled,omitempty"`
}

// Report captures high-level metrics about a publish run.
type Report struct {
	SchemaVersion   int
	RunID           string
	Start           time.Time
	End             time.Time
	Outcome         Outcome
	FilesPublished  int
	EntriesRemoved  int // top-level entries cleared from the old publish dir
	BrokenLinks     int
	SourceCommit    string
	SourceBranch    string
	StageDurations  map[string]time.Duration
	StageErrorKinds map[string]StageErrorKind
	StageCounts     map[string]StageCount
	Errors          []error // fatal errors causing run abortion (at most one today)
	Warnings        []error // non-fatal issues (broken links, report persistence)
}

const reportSchemaVersion = 1

func newReport(runID string) *Report {
	return &Report{
		SchemaVersion:   reportSchemaVersion,
		RunID:           runID,
		Start:           time.Now(),
		StageDurations:  make(map[string]time.Duration),
		StageErrorKinds: make(map[string]StageErrorKind),
		StageCounts:     make(map[string]StageCount),
	}
}

func (r *Report) recordSuccess(stage string) {
	sc := r.StageCounts[stage]
	sc.Success++
	r.StageCounts[stage] = sc
}

func (r *Report) recordError(stage string, se *StageError) {
	r.StageErrorKinds[stage] = se.Kind
	sc := r.StageCounts[stage]
	switch se.Kind {
	case StageErrorWarning:
		sc.Warning++
		r.Warnings = append(r.Warnings, se)
	case StageErrorCanceled:
		sc.Canceled++
		r.Errors = append(r.Errors, se)
	default:
		sc.Fatal++
		r.Errors = append(r.Errors, se)
	}
	r.StageCounts[stage] = sc
}

// deriveOutcome finalizes the outcome from the terminal stage error (if any)
// and accumulated warnings.
func (r *Report) deriveOutcome(err error) {
	switch {
	case err == nil && len(r.Warnings) == 0:
		r.Outcome = OutcomeSuccess
	case err == nil:
		r.Outcome = OutcomeWarning
	default:
		var se *StageError
		if errors.As(err, &se) && se.Kind == StageErrorCanceled {
			r.Outcome = OutcomeCanceled
		} else {
			r.Outcome = OutcomeFailed
		}
	}
}

// Duration returns the total wall-clock run duration.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// reportJSON is the serialized form; errors become strings.
type reportJSON struct {
	SchemaVersion   int                       `json:"schema_version"`
	RunID           string                    `json:"run_id"`
	Start           time.Time                 `json:"start"`
	End             time.Time                 `json:"end"`
	Outcome         Outcome                   `json:"outcome"`
	FilesPublished  int                       `json:"files_published"`
	EntriesRemoved  int                       `json:"entries_removed"`
	BrokenLinks     int                       `json:"broken_links"`
	SourceCommit    string                    `json:"source_commit,omitempty"`
	SourceBranch    string                    `json:"source_branch,omitempty"`
	StageDurationMS map[string]float64        `json:"stage_duration_ms"`
	StageErrorKinds map[string]StageErrorKind `json:"stage_error_kinds,omitempty"`
	StageCounts     map[string]StageCount     `json:"stage_counts"`
	Errors          []string                  `json:"errors,omitempty"`
	Warnings        []string                  `json:"warnings,omitempty"`
}

func (r *Report) serializable() reportJSON {
	out := reportJSON{
		SchemaVersion:   r.SchemaVersion,
		RunID:           r.RunID,
		Start:           r.Start,
		End:             r.End,
		Outcome:         r.Outcome,
		FilesPublished:  r.FilesPublished,
		EntriesRemoved:  r.EntriesRemoved,
		BrokenLinks:     r.BrokenLinks,
		SourceCommit:    r.SourceCommit,
		SourceBranch:    r.SourceBranch,
		StageDurationMS: make(map[string]float64, len(r.StageDurations)),
		StageErrorKinds: r.StageErrorKinds,
		StageCounts:     r.StageCounts,
	}
	for stage, d := range r.StageDurations {
		out.StageDurationMS[stage] = float64(d.Microseconds()) / 1000.0
	}
	for _, err := range r.Errors {
		out.Errors = append(out.Errors, err.Error())
	}
	for _, err := range r.Warnings {
		out.Warnings = append(out.Warnings, err.Error())
	}
	return out
}

// MarshalJSON serializes the report with errors flattened to strings.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.serializable())
}

// Persist writes the report as indented JSON to path.
func (r *Report) Persist(path string) error {
	data, err := json.MarshalIndent(r.serializable(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
