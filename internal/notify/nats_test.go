package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpublish/internal/config"
)

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	require.NoError(t, p.PublishBuildEvent(context.Background(), BuildEvent{RunID: "x"}))
	p.Close()
}

func TestNewPublisherRequiresEnabled(t *testing.T) {
	_, err := NewPublisher(config.NotifyConfig{Enabled: false})
	require.Error(t, err)
}

func TestBuildEventJSON(t *testing.T) {
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := BuildEvent{
		RunID:       "run-1",
		Outcome:     "success",
		Files:       12,
		BrokenLinks: 0,
		Started:     started,
		Finished:    started.Add(3 * time.Second),
	}

	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, "run-1", decoded["run_id"])
	require.Equal(t, "success", decoded["outcome"])
	require.NotContains(t, decoded, "source_commit")
}
