package queuectl

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-memory store implementation.
// It implements the Store interface. Do not use in production: it
// loses all state when the process exits and cannot be shared between
// processes.
type InMemoryStore struct {
	cfg Config

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewInMemoryStore creates a new InMemoryStore reading policy defaults
// from cfg. A nil cfg falls back to an empty MapConfig, i.e. the
// built-in defaults.
func NewInMemoryStore(cfg Config) *InMemoryStore {
	if cfg == nil {
		cfg = NewMapConfig()
	}
	return &InMemoryStore{
		cfg:  cfg,
		jobs: make(map[string]*Job),
	}
}

// Start the store.
func (st *InMemoryStore) Start(ctx context.Context) error {
	return nil
}

// Add puts a new job into the queue in the pending state.
func (st *InMemoryStore) Add(ctx context.Context, job *Job) error {
	if job.MaxRetries <= 0 {
		n, err := IntSetting(ctx, st.cfg, KeyMaxRetries, DefaultMaxRetries)
		if err != nil {
			return err
		}
		job.MaxRetries = n
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.State = StatePending
	job.Attempts = 0
	job.RunAt = nil
	job.UpdatedAt = now

	st.mu.Lock()
	defer st.mu.Unlock()
	cp := *job
	st.jobs[job.ID] = &cp
	return nil
}

// Claim picks the oldest eligible job and moves it into the processing
// state. The store mutex makes the select-then-update atomic.
func (st *InMemoryStore) Claim(ctx context.Context) (*Job, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := time.Now().UTC()
	var next *Job
	for _, job := range st.jobs {
		if !job.claimable(now) {
			continue
		}
		if next == nil || olderThan(job, next) {
			next = job
		}
	}
	if next == nil {
		return nil, nil
	}
	next.State = StateProcessing
	next.UpdatedAt = now
	cp := *next
	return &cp, nil
}

// olderThan orders jobs by creation time, ties broken by id.
func olderThan(a, b *Job) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Complete marks the job as completed.
func (st *InMemoryStore) Complete(ctx context.Context, id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	job, found := st.jobs[id]
	if !found {
		return ErrNotFound
	}
	job.State = StateCompleted
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail records a failed execution attempt on job.
func (st *InMemoryStore) Fail(ctx context.Context, job *Job) error {
	base, err := IntSetting(ctx, st.cfg, KeyBackoffBase, DefaultBackoffBase)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, found := st.jobs[job.ID]; !found {
		return ErrNotFound
	}
	ApplyFailure(job, base, time.Now().UTC())
	cp := *job
	st.jobs[job.ID] = &cp
	return nil
}

// Requeue moves a dead job back to pending.
func (st *InMemoryStore) Requeue(ctx context.Context, id string) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	job, found := st.jobs[id]
	if !found || job.State != StateDead {
		return false, nil
	}
	job.State = StatePending
	job.Attempts = 0
	job.RunAt = nil
	job.UpdatedAt = time.Now().UTC()
	return true, nil
}

// Lookup returns the job with the specified identifier (or ErrNotFound).
func (st *InMemoryStore) Lookup(ctx context.Context, id string) (*Job, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	job, found := st.jobs[id]
	if !found {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

// List finds matching jobs, oldest first.
func (st *InMemoryStore) List(ctx context.Context, req *ListRequest) ([]*Job, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var jobs []*Job
	for _, job := range st.jobs {
		if req.State != "" && job.State != req.State {
			continue
		}
		cp := *job
		jobs = append(jobs, &cp)
	}
	sort.Slice(jobs, func(i, j int) bool { return olderThan(jobs[i], jobs[j]) })
	if req.Offset > 0 {
		if req.Offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[req.Offset:]
	}
	if req.Limit > 0 && len(jobs) > req.Limit {
		jobs = jobs[:req.Limit]
	}
	return jobs, nil
}

// Stats returns statistics about the jobs in the store.
func (st *InMemoryStore) Stats(ctx context.Context) (*Stats, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	stats := &Stats{}
	for _, job := range st.jobs {
		switch job.State {
		default:
			return nil, fmt.Errorf("queuectl: found unknown state %v", job.State)
		case StatePending:
			stats.Pending++
		case StateProcessing:
			stats.Processing++
		case StateCompleted:
			stats.Completed++
		case StateFailed:
			stats.Failed++
		case StateDead:
			stats.Dead++
		}
	}
	return stats, nil
}
