// Package history persists publish-run records in SQLite so operators can
// inspect past runs without scraping logs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord is one completed publish run.
type RunRecord struct {
	ID          string
	Started     time.Time
	DurationMS  int64
	Outcome     string
	Files       int
	BrokenLinks int
	Report      []byte // full JSON build report
}

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("run not found")

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (and initializes) the store. Use ":memory:" for tests.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		files INTEGER NOT NULL,
		broken_links INTEGER NOT NULL,
		report BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores a completed run.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, started, duration_ms, outcome, files, broken_links, report) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Started.Unix(), rec.DurationMS, rec.Outcome, rec.Files, rec.BrokenLinks, rec.Report,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started, duration_ms, outcome, files, broken_links, report FROM runs ORDER BY started DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRuns(rows)
}

// GetRun retrieves a single run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, started, duration_ms, outcome, files, broken_links, report FROM runs WHERE id = ?", id)

	var rec RunRecord
	var started int64
	err := row.Scan(&rec.ID, &started, &rec.DurationMS, &rec.Outcome, &rec.Files, &rec.BrokenLinks, &rec.Report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	rec.Started = time.Unix(started, 0)
	return &rec, nil
}

// Prune deletes all but the newest keep runs, returning the number removed.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started DESC, id DESC LIMIT ?)", keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: rows affected: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanRuns(rows *sql.Rows) ([]RunRecord, error) {
	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started int64
		if err := rows.Scan(&rec.ID, &started, &rec.DurationMS, &rec.Outcome, &rec.Files, &rec.BrokenLinks, &rec.Report); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Started = time.Unix(started, 0)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
