package queuectl

import (
	"context"
	"sort"
	"sync"
	"time"
)

// WorkerInfo identifies a registered worker process.
type WorkerInfo struct {
	PID       int       `json:"pid"`        // operating system process id
	StartedAt time.Time `json:"started_at"` // time the worker registered
}

// Registry is the directory of live worker processes. A worker
// registers its identity on startup and unregisters it on exit; the
// out-of-process shutdown path uses Active to find workers to signal.
type Registry interface {
	// Register records w as an active worker, replacing any previous
	// entry for the same pid.
	Register(ctx context.Context, w *WorkerInfo) error

	// Unregister removes the entry for pid. Removing an unknown pid is
	// not an error.
	Unregister(ctx context.Context, pid int) error

	// Active returns every registered worker, ordered by pid.
	Active(ctx context.Context) ([]*WorkerInfo, error)
}

// InMemoryRegistry is a simple in-memory Registry implementation.
// It implements the Registry interface. Do not use in production.
type InMemoryRegistry struct {
	mu      sync.Mutex
	workers map[int]*WorkerInfo
}

// NewInMemoryRegistry creates a new InMemoryRegistry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{workers: make(map[int]*WorkerInfo)}
}

// Register records w as an active worker.
func (r *InMemoryRegistry) Register(_ context.Context, w *WorkerInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.workers[w.PID] = &cp
	return nil
}

// Unregister removes the entry for pid.
func (r *InMemoryRegistry) Unregister(_ context.Context, pid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, pid)
	return nil
}

// Active returns every registered worker, ordered by pid.
func (r *InMemoryRegistry) Active(_ context.Context) ([]*WorkerInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	workers := make([]*WorkerInfo, 0, len(r.workers))
	for _, w := range r.workers {
		cp := *w
		workers = append(workers, &cp)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].PID < workers[j].PID })
	return workers, nil
}
