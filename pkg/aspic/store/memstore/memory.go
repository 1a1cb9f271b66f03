// Package memstore is an in-memory store.Store, used in tests and for
// single-shot CLI runs that do not need persistence.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/aspic/pkg/aspic/store"
)

type countKey struct {
	hash string
	idx  uint64
}

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu     sync.RWMutex
	counts map[countKey]uint64
	runs   map[string]store.Run
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		counts: make(map[countKey]uint64),
		runs:   make(map[string]store.Run),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// GetCount returns a cached model count.
func (s *Store) GetCount(ctx context.Context, programHash string, idx uint64) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.counts[countKey{programHash, idx}]
	return n, ok, nil
}

// PutCount caches a model count.
func (s *Store) PutCount(ctx context.Context, programHash string, idx uint64, count uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[countKey{programHash, idx}] = count
	return nil
}

// PurgeCounts drops every cached count of one program.
func (s *Store) PurgeCounts(ctx context.Context, programHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.counts {
		if k.hash == programHash {
			delete(s.counts, k)
		}
	}
	return nil
}

// PutRun stores a run record, keyed by ID.
func (s *Store) PutRun(ctx context.Context, r store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
	return nil
}

// GetRun returns a run record by ID.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	return r, ok, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	runs := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
