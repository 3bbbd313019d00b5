package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a
// Store. Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func (s *SQLiteStore) RecordRun(ctx context.Context, rec *RunRecord) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "workflow", rec.Workflow)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, session_id, workflow, command, cores, memory_mb, runtime_minutes, state, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Workflow, rec.Command, rec.Cores,
		rec.MemoryMB, rec.RuntimeMinutes, rec.State,
		rec.RecordedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) RunsByWorkflow(ctx context.Context, workflow string) ([]*RunRecord, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "workflow", workflow)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, workflow, command, cores, memory_mb, runtime_minutes, state, recorded_at
		 FROM runs WHERE workflow = ? ORDER BY recorded_at`, workflow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*RunRecord
	for rows.Next() {
		var rec RunRecord
		var recordedAt string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Workflow, &rec.Command,
			&rec.Cores, &rec.MemoryMB, &rec.RuntimeMinutes, &rec.State, &recordedAt); err != nil {
			return nil, err
		}
		rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}
