package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndGetRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	rec := RunRecord{
		ID:          "run-1",
		Started:     time.Now().Truncate(time.Second),
		DurationMS:  1234,
		Outcome:     "success",
		Files:       42,
		BrokenLinks: 0,
		Report:      []byte(`{"run_id":"run-1"}`),
	}
	require.NoError(t, s.RecordRun(ctx, rec))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, rec.Outcome, got.Outcome)
	require.Equal(t, rec.Files, got.Files)
	require.Equal(t, rec.Report, got.Report)
	require.Equal(t, rec.Started.Unix(), got.Started.Unix())
}

func TestGetRun_NotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordRun(ctx, RunRecord{
			ID:      fmt.Sprintf("run-%d", i),
			Started: base.Add(time.Duration(i) * time.Minute),
			Outcome: "success",
		}))
	}

	runs, err := s.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, "run-4", runs[0].ID)
	require.Equal(t, "run-2", runs[2].ID)
}

func TestPrune_KeepsNewest(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.RecordRun(ctx, RunRecord{
			ID:      fmt.Sprintf("run-%d", i),
			Started: base.Add(time.Duration(i) * time.Minute),
			Outcome: "success",
		}))
	}

	removed, err := s.Prune(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, 6, removed)

	runs, err := s.ListRuns(ctx, 100)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	require.Equal(t, "run-9", runs[0].ID)
}

func TestPrune_NoopWhenKeepZero(t *testing.T) {
	s := openStore(t)
	removed, err := s.Prune(context.Background(), 0)
	require.NoError(t, err)
	require.Zero(t, removed)
}
