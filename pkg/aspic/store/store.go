// Package store persists per-choice model counts and inference run
// records. The count cache lets training loops skip re-solving total
// choices of an unchanged program; run records are the audit trail a
// learning loop consumes.
package store

import (
	"context"
	"time"
)

// Store is the persistence interface of the inference engine.
type Store interface {
	Close() error

	// Count cache, keyed by program hash and total choice index.
	GetCount(ctx context.Context, programHash string, idx uint64) (uint64, bool, error)
	PutCount(ctx context.Context, programHash string, idx uint64, count uint64) error
	PurgeCounts(ctx context.Context, programHash string) error

	// Run records.
	PutRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Run records one inference call.
type Run struct {
	ID          string
	CreatedAt   time.Time
	ProgramHash string
	Semantics   string
	Workers     int
	// ResultJSON holds the per-query probability output.
	ResultJSON string
}
