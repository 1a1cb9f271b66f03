// Package sqlite is the persistent store.Store backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/aspic/pkg/aspic/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// Open opens a SQLite database with WAL mode enabled and the schema
// initialized.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS model_counts (
	program_hash TEXT NOT NULL,
	choice_idx INTEGER NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY(program_hash, choice_idx)
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	program_hash TEXT NOT NULL,
	semantics TEXT NOT NULL,
	workers INTEGER NOT NULL,
	result_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// GetCount returns a cached model count.
func (s *sqliteStore) GetCount(ctx context.Context, programHash string, idx uint64) (uint64, bool, error) {
	var count uint64
	err := s.db.QueryRowContext(ctx,
		"SELECT count FROM model_counts WHERE program_hash = ? AND choice_idx = ?",
		programHash, int64(idx)).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

// PutCount caches a model count.
func (s *sqliteStore) PutCount(ctx context.Context, programHash string, idx uint64, count uint64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_counts(program_hash, choice_idx, count) VALUES(?, ?, ?)
		 ON CONFLICT(program_hash, choice_idx) DO UPDATE SET count = excluded.count`,
		programHash, int64(idx), count)
	return err
}

// PurgeCounts drops every cached count of one program.
func (s *sqliteStore) PurgeCounts(ctx context.Context, programHash string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM model_counts WHERE program_hash = ?", programHash)
	return err
}

// PutRun stores a run record.
func (s *sqliteStore) PutRun(ctx context.Context, r store.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, created_at, program_hash, semantics, workers, result_json)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET result_json = excluded.result_json`,
		r.ID, r.CreatedAt.UTC().Format(time.RFC3339Nano), r.ProgramHash, r.Semantics, r.Workers, r.ResultJSON)
	return err
}

// GetRun returns a run record by ID.
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, created_at, program_hash, semantics, workers, result_json FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return store.Run{}, false, nil
	}
	if err != nil {
		return store.Run{}, false, err
	}
	return r, true, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at, program_hash, semantics, workers, result_json FROM runs ORDER BY created_at DESC, id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (store.Run, error) {
	var r store.Run
	var created string
	if err := row.Scan(&r.ID, &created, &r.ProgramHash, &r.Semantics, &r.Workers, &r.ResultJSON); err != nil {
		return store.Run{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		r.CreatedAt = ts
	}
	return r, nil
}
