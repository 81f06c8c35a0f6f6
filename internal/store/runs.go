package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID           string
	Playlist     string
	Started      time.Time
	Finished     time.Time
	Status       string
	Tracks       int
	Playlists    int
	Error        string
	SkippedFetch bool
}

// Outcome is what a finished run reports.
type Outcome struct {
	Tracks    int
	Playlists int
	Err       error
}

// StartRun records a new running run and returns its id.
func (s *Store) StartRun(playlist string, skippedFetch bool, started time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		"INSERT INTO Run (id, playlist, started, status, skipped_fetch) VALUES (?, ?, ?, ?, ?)",
		id, playlist, started.UTC(), StatusRunning, skippedFetch)
	if err != nil {
		return "", fmt.Errorf("inserting run for %q: %w", playlist, err)
	}
	return id, nil
}

// FinishRun marks a run succeeded, or failed when out.Err is set.
func (s *Store) FinishRun(id string, finished time.Time, out Outcome) error {
	status, msg := StatusSucceeded, ""
	if out.Err != nil {
		status, msg = StatusFailed, out.Err.Error()
	}
	res, err := s.db.Exec(
		"UPDATE Run SET finished = ?, status = ?, tracks = ?, playlists = ?, error = ? WHERE id = ?",
		finished.UTC(), status, out.Tracks, out.Playlists, msg, id)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// ListRuns returns up to limit runs, most recent first. A limit of zero or
// less returns every run.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
SELECT id, playlist, started, finished, status, tracks, playlists, error, skipped_fetch
FROM Run
ORDER BY started DESC, id
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Playlist, &r.Started, &finished, &r.Status,
			&r.Tracks, &r.Playlists, &r.Error, &r.SkippedFetch); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Finished = finished.Time
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
