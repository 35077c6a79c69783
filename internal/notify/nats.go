// Package notify publishes build events to NATS so downstream consumers
// (chat bridges, dashboards) can react to documentation updates. The whole
// package is optional: a nil *Publisher is a no-op.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// BuildEvent is the JSON payload published after each run.
type BuildEvent struct {
	RunID        string    `json:"run_id"`
	Outcome      string    `json:"outcome"`
	Files        int       `json:"files"`
	BrokenLinks  int       `json:"broken_links"`
	SourceCommit string    `json:"source_commit,omitempty"`
	Started      time.Time `json:"started"`
	Finished     time.Time `json:"finished"`
}

// Publisher publishes build events to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher connects to NATS using the notify config. Callers should only
// construct one when cfg.Enabled is true.
func NewPublisher(cfg config.NotifyConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("notifications are disabled")
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("docpublish"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	slog.Info("NATS publisher initialized", logfields.URL(cfg.URL), logfields.Subject(cfg.Subject))
	return &Publisher{conn: conn, subject: cfg.Subject}, nil
}

// PublishBuildEvent publishes the event, honoring context cancellation via flush.
func (p *Publisher) PublishBuildEvent(ctx context.Context, ev BuildEvent) error {
	if p == nil {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal build event: %w", err)
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish build event: %w", err)
	}

	deadline := 5 * time.Second
	if d, ok := ctx.Deadline(); ok {
		deadline = time.Until(d)
	}
	if err := p.conn.FlushTimeout(deadline); err != nil {
		return fmt.Errorf("flush build event: %w", err)
	}

	slog.Debug("Published build event", logfields.RunID(ev.RunID), logfields.Subject(p.subject))
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
