package pipeline

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeriveOutcome(t *testing.T) {
	r := newReport("r1")
	r.deriveOutcome(nil)
	require.Equal(t, OutcomeSuccess, r.Outcome)

	r = newReport("r2")
	r.Warnings = append(r.Warnings, errors.New("broken links"))
	r.deriveOutcome(nil)
	require.Equal(t, OutcomeWarning, r.Outcome)

	r = newReport("r3")
	r.deriveOutcome(newFatalStageError(StageRender, errors.New("boom")))
	require.Equal(t, OutcomeFailed, r.Outcome)

	r = newReport("r4")
	r.deriveOutcome(newCanceledStageError(StageExtract, errors.New("ctx")))
	require.Equal(t, OutcomeCanceled, r.Outcome)
}

func TestRecordErrorClassification(t *testing.T) {
	r := newReport("r1")
	r.recordError(StageVerifyLinks, newWarnStageError(StageVerifyLinks, errors.New("3 broken")))
	r.recordError(StagePublish, newFatalStageError(StagePublish, errors.New("copy failed")))

	require.Equal(t, 1, r.StageCounts[StageVerifyLinks].Warning)
	require.Equal(t, 1, r.StageCounts[StagePublish].Fatal)
	require.Equal(t, StageErrorWarning, r.StageErrorKinds[StageVerifyLinks])
	require.Len(t, r.Warnings, 1)
	require.Len(t, r.Errors, 1)
}

func TestMarshalJSON_FlattensErrors(t *testing.T) {
	r := newReport("run-json")
	r.StageDurations[StageRender] = 1500 * time.Millisecond
	r.recordError(StageVerifyLinks, newWarnStageError(StageVerifyLinks, errors.New("2 broken internal links")))
	r.End = r.Start.Add(2 * time.Second)
	r.deriveOutcome(nil)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "run-json", decoded["run_id"])
	require.Equal(t, string(OutcomeWarning), decoded["outcome"])

	warnings, ok := decoded["warnings"].([]any)
	require.True(t, ok)
	require.Len(t, warnings, 1)

	durations, ok := decoded["stage_duration_ms"].(map[string]any)
	require.True(t, ok)
	require.InDelta(t, 1500.0, durations[StageRender], 0.01)
}

func TestPersist(t *testing.T) {
	r := newReport("run-persist")
	r.FilesPublished = 12
	r.End = r.Start.Add(time.Second)
	r.deriveOutcome(nil)

	path := filepath.Join(t.TempDir(), reportFileName)
	require.NoError(t, r.Persist(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded reportJSON
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "run-persist", decoded.RunID)
	require.Equal(t, 12, decoded.FilesPublished)
	require.Equal(t, reportSchemaVersion, decoded.SchemaVersion)
}
