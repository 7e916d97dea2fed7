package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Garmin session (singleton row)
		`CREATE TABLE IF NOT EXISTS auth (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			display_name TEXT NOT NULL,
			oauth1_token TEXT NOT NULL,
			oauth1_secret TEXT NOT NULL,
			mfa_token TEXT NOT NULL DEFAULT '',
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			refresh_expires_at INTEGER,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// One row per export run
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			day TEXT NOT NULL,
			samples INTEGER NOT NULL,
			classified INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_runs_day ON runs(day)`,

		// Files written by a run
		`CREATE TABLE IF NOT EXISTS exports (
			run_id TEXT NOT NULL,
			day TEXT NOT NULL,
			kind TEXT NOT NULL,
			path TEXT NOT NULL,
			bytes INTEGER NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, kind),
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_exports_day ON exports(day)`,

		// Sync State (key-value store)
		`CREATE TABLE IF NOT EXISTS sync_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
