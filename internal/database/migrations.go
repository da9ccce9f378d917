package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "run history",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    mode TEXT NOT NULL CHECK(mode IN ('cache', 'strategy', 'draft')),
    state TEXT NOT NULL,
    period_id TEXT,
    counts TEXT,
    message TEXT,
    error TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_mode ON runs(mode);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "per-group strategy outcomes",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS run_groups (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    group_key TEXT NOT NULL,
    facts INTEGER DEFAULT 0,
    kept INTEGER DEFAULT 0,
    dropped INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0,
    outcome TEXT NOT NULL,
    PRIMARY KEY (run_id, group_key)
);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
