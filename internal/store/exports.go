package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when no run has been recorded
var ErrRunNotFound = errors.New("run not found")

// Fixed-width so run timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecordRun inserts or updates a run. A zero FinishedAt is stored as NULL,
// marking a run that has not completed.
func (db *DB) RecordRun(r *Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (run_id, day, samples, classified, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			samples = excluded.samples,
			classified = excluded.classified,
			finished_at = excluded.finished_at
	`, r.RunID, r.Day, r.Samples, r.Classified,
		r.StartedAt.UTC().Format(timeLayout), nullTime(r.FinishedAt))
	return err
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

// RecordExport stores a written file against its run. The run must exist.
func (db *DB) RecordExport(e *Export) error {
	_, err := db.Exec(`
		INSERT INTO exports (run_id, day, kind, path, bytes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, kind) DO UPDATE SET
			path = excluded.path,
			bytes = excluded.bytes
	`, e.RunID, e.Day, e.Kind, e.Path, e.Bytes)
	return err
}

// ListExports returns every file recorded for a day, newest run first
func (db *DB) ListExports(day string) ([]Export, error) {
	rows, err := db.Query(`
		SELECT e.run_id, e.day, e.kind, e.path, e.bytes
		FROM exports e
		JOIN runs r ON r.run_id = e.run_id
		WHERE e.day = ?
		ORDER BY r.started_at DESC, e.rowid
	`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []Export
	for rows.Next() {
		var e Export
		if err := rows.Scan(&e.RunID, &e.Day, &e.Kind, &e.Path, &e.Bytes); err != nil {
			return nil, err
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}

// LastRun returns the most recently started run
func (db *DB) LastRun() (*Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	err := db.QueryRow(`
		SELECT run_id, day, samples, classified, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT 1
	`).Scan(&r.RunID, &r.Day, &r.Samples, &r.Classified, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if finishedAt.Valid {
		if r.FinishedAt, err = time.Parse(timeLayout, finishedAt.String); err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
	}
	return &r, nil
}
