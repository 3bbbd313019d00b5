package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all campman tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id              TEXT PRIMARY KEY,
		session_id      TEXT NOT NULL DEFAULT '',
		workflow        TEXT NOT NULL,
		command         TEXT NOT NULL DEFAULT '',
		cores           INTEGER NOT NULL DEFAULT 0,
		memory_mb       REAL NOT NULL DEFAULT 0,
		runtime_minutes REAL NOT NULL DEFAULT 0,
		state           TEXT NOT NULL DEFAULT '',
		recorded_at     TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_workflow ON runs(workflow)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
