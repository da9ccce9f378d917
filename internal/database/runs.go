package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const timeFormat = time.RFC3339

// StartRun records the start of a run and returns its ID.
func (db *DB) StartRun(mode string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		`INSERT INTO runs (id, mode, state, started_at) VALUES (?, ?, ?, ?)`,
		id, mode, "running", startedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// FinishRun stores the terminal state, counters and delivered message of a
// run. runErr may be nil.
func (db *DB) FinishRun(id, state string, periodID *string, counts map[string]int,
	message string, runErr error, finishedAt time.Time) error {
	encoded, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("encoding counts: %w", err)
	}

	var errText *string
	if runErr != nil {
		s := runErr.Error()
		errText = &s
	}

	res, err := db.conn.Exec(
		`UPDATE runs SET state = ?, period_id = ?, counts = ?, message = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		state, periodID, string(encoded), message, errText, finishedAt.UTC().Format(timeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// InsertGroupOutcomes records per-group results for a strategy run.
func (db *DB) InsertGroupOutcomes(outcomes []GroupOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO run_groups (run_id, group_key, facts, kept, dropped, failed, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, o := range outcomes {
		if _, err := stmt.Exec(o.RunID, o.Group, o.Facts, o.Kept, o.Dropped, o.Failed, o.Outcome); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting group %s: %w", o.Group, err)
		}
	}
	return tx.Commit()
}

// GetGroupOutcomes returns the group outcomes of a run ordered by group key.
func (db *DB) GetGroupOutcomes(runID string) ([]GroupOutcome, error) {
	rows, err := db.conn.Query(
		`SELECT run_id, group_key, facts, kept, dropped, failed, outcome
		FROM run_groups WHERE run_id = ? ORDER BY group_key`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GroupOutcome
	for rows.Next() {
		var o GroupOutcome
		if err := rows.Scan(&o.RunID, &o.Group, &o.Facts, &o.Kept, &o.Dropped, &o.Failed, &o.Outcome); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const runColumns = `id, mode, state, period_id, counts, message, error, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r      Run
		counts sql.NullString
	)
	if err := s.Scan(&r.ID, &r.Mode, &r.State, &r.PeriodID, &counts,
		&r.Message, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
		return nil, err
	}
	if counts.Valid && counts.String != "" {
		if err := json.Unmarshal([]byte(counts.String), &r.Counts); err != nil {
			return nil, fmt.Errorf("decoding counts for run %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

// GetRun returns a run by ID, or nil when it does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	r, err := scanRun(db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// GetRecentRuns returns up to limit runs, newest first.
func (db *DB) GetRecentRuns(limit int) ([]Run, error) {
	rows, err := db.conn.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetLastRun returns the newest run of a mode, or nil.
func (db *DB) GetLastRun(mode string) (*Run, error) {
	r, err := scanRun(db.conn.QueryRow(
		`SELECT `+runColumns+` FROM runs WHERE mode = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, mode,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// GetStats returns run counts per mode and the latest run.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{ByMode: make(map[string]int)}

	rows, err := db.conn.Query(`SELECT mode, COUNT(*) FROM runs GROUP BY mode`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			mode string
			n    int
		)
		if err := rows.Scan(&mode, &n); err != nil {
			return nil, err
		}
		s.ByMode[mode] = n
		s.TotalRuns += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recent, err := db.GetRecentRuns(1)
	if err != nil {
		return nil, err
	}
	if len(recent) > 0 {
		s.LastRun = &recent[0]
	}
	return s, nil
}
