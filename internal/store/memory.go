package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRunStore implements RunStore in memory for tests and sessions that
// should leave nothing on disk.
type MemoryRunStore struct {
	mu      sync.RWMutex
	runs    map[string]Run
	nowFunc func() time.Time
}

// NewMemoryRunStore creates an empty in-memory store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs:    make(map[string]Run),
		nowFunc: time.Now,
	}
}

// SaveRun stores a copy of run.
func (s *MemoryRunStore) SaveRun(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run = prepare(run, s.nowFunc)
	s.runs[run.ID] = run
	return run.ID, nil
}

// GetRun retrieves a run by ID.
func (s *MemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return &run, nil
}

// ListRuns returns runs newest first.
func (s *MemoryRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// DeleteRun removes a run.
func (s *MemoryRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	delete(s.runs, id)
	return nil
}

// Close is a no-op.
func (s *MemoryRunStore) Close() error {
	return nil
}
