package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/voice-ledger/internal/jobs"
)

// Store is an in-memory JobStore. Jobs are kept without their audio and the
// oldest finished ones are evicted once more than limit are held.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*jobs.CaptureJob
	limit int
}

// DefaultStoreLimit bounds how many jobs NewStore keeps.
const DefaultStoreLimit = 256

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return NewStoreWithLimit(DefaultStoreLimit)
}

func NewStoreWithLimit(limit int) *Store {
	return &Store{
		jobs:  make(map[string]*jobs.CaptureJob),
		limit: limit,
	}
}

func (s *Store) SaveJob(ctx context.Context, job *jobs.CaptureJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job.Clone()
	s.evictLocked()
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.CaptureJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob %s: %w", jobID, jobs.ErrJobNotFound)
	}
	return job.Clone(), nil
}

// ListJobs returns matching jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.CaptureJob, error) {
	s.mu.RLock()
	result := make([]*jobs.CaptureJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.TargetKey != "" && job.Target.Key() != filter.TargetKey {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		result = append(result, job.Clone())
	}
	s.mu.RUnlock()

	sortNewestFirst(result)

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.CaptureJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) evictLocked() {
	if s.limit <= 0 || len(s.jobs) <= s.limit {
		return
	}
	var finished []*jobs.CaptureJob
	for _, job := range s.jobs {
		if job.Done() {
			finished = append(finished, job)
		}
	}
	sortNewestFirst(finished)
	for i := len(finished) - 1; i >= 0 && len(s.jobs) > s.limit; i-- {
		delete(s.jobs, finished[i].JobID)
	}
}

func sortNewestFirst(js []*jobs.CaptureJob) {
	sort.Slice(js, func(a, b int) bool {
		if js[a].CreatedAt.Equal(js[b].CreatedAt) {
			return js[a].JobID > js[b].JobID
		}
		return js[a].CreatedAt.After(js[b].CreatedAt)
	})
}

var _ jobs.JobStore = (*Store)(nil)
