package queuectl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultLivenessInterval is the pause between liveness sweeps over the
// worker pool.
const DefaultLivenessInterval = 5 * time.Second

// Process is a handle on a spawned worker process.
type Process interface {
	// PID returns the operating system process id.
	PID() int

	// Running reports whether the process has not exited yet.
	Running() bool

	// Signal delivers sig to the process.
	Signal(sig os.Signal) error

	// Wait blocks until the process has exited.
	Wait() error
}

// Spawner starts a new worker process.
type Spawner func(ctx context.Context) (Process, error)

// handle tracks one spawned worker.
type handle struct {
	proc      Process
	startedAt time.Time
}

// Supervisor keeps a fixed-size pool of worker processes alive. Workers
// that exit without having been asked to are replaced on the next
// liveness sweep; a pool-wide shutdown signals every worker and waits
// for all of them to exit. Create a new supervisor via NewSupervisor.
type Supervisor struct {
	spawn    Spawner
	size     int
	interval time.Duration
	logger   Logger

	mu       sync.Mutex // guards the following block
	handles  []*handle
	stopping bool

	testWorkerSpawned   func() // testing hook
	testWorkerRestarted func() // testing hook
}

// NewSupervisor creates a new supervisor that maintains size worker
// processes spawned through spawn. Pass options to configure it.
func NewSupervisor(spawn Spawner, size int, options ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		spawn:               spawn,
		size:                size,
		interval:            DefaultLivenessInterval,
		logger:              stdLogger{},
		testWorkerSpawned:   nop,
		testWorkerRestarted: nop,
	}
	if s.size < 1 {
		s.size = 1
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// -- Configuration --

// SupervisorOption is the signature of an options provider.
type SupervisorOption func(*Supervisor)

// SetLivenessInterval specifies how often the supervisor checks its
// workers for unexpected exits.
func SetLivenessInterval(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if d > 0 {
			s.interval = d
		}
	}
}

// SetSupervisorLogger specifies the logger to use when e.g. reporting
// worker restarts.
func SetSupervisorLogger(logger Logger) SupervisorOption {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// -- Run --

// Run spawns the pool and supervises it until ctx is canceled, then
// performs a graceful shutdown: every worker is sent SIGTERM and Run
// does not return before all of them have exited. Workers found dead
// during a liveness sweep are replaced, keeping the pool at its
// configured size; workers exiting because they were told to are never
// treated as crashes.
func (s *Supervisor) Run(ctx context.Context) error {
	for i := 0; i < s.size; i++ {
		if err := s.spawnOne(ctx); err != nil {
			s.shutdown()
			return err
		}
	}

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		case <-t.C:
			if err := s.sweep(ctx); err != nil {
				s.shutdown()
				return err
			}
		}
	}
}

func (s *Supervisor) spawnOne(ctx context.Context) error {
	proc, err := s.spawn(ctx)
	if err != nil {
		return fmt.Errorf("queuectl: spawn worker: %w", err)
	}
	s.mu.Lock()
	s.handles = append(s.handles, &handle{proc: proc, startedAt: time.Now()})
	s.mu.Unlock()
	s.logger.Printf("queuectl: supervisor started worker %d", proc.PID())
	s.testWorkerSpawned()
	return nil
}

// sweep reaps workers that died since the last check and spawns
// replacements for them.
func (s *Supervisor) sweep(ctx context.Context) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	var dead int
	alive := s.handles[:0]
	for _, h := range s.handles {
		if h.proc.Running() {
			alive = append(alive, h)
			continue
		}
		dead++
		s.logger.Printf("queuectl: worker %d died unexpectedly, restarting", h.proc.PID())
	}
	s.handles = alive
	s.mu.Unlock()

	for i := 0; i < dead; i++ {
		if err := s.spawnOne(ctx); err != nil {
			return err
		}
		s.testWorkerRestarted()
	}
	return nil
}

// shutdown signals every tracked worker and waits for all of them to
// exit. A worker's own exit error is logged, not propagated: a child
// failing on the way down must not abort the shutdown of its siblings.
func (s *Supervisor) shutdown() error {
	s.mu.Lock()
	s.stopping = true
	handles := make([]*handle, len(s.handles))
	copy(handles, s.handles)
	s.mu.Unlock()

	s.logger.Printf("queuectl: supervisor stopping %d worker(s)", len(handles))
	var g errgroup.Group
	for _, h := range handles {
		h := h
		g.Go(func() error {
			if err := h.proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
				s.logger.Printf("queuectl: signal worker %d: %v", h.proc.PID(), err)
			}
			if err := h.proc.Wait(); err != nil {
				s.logger.Printf("queuectl: worker %d exited with %v", h.proc.PID(), err)
			}
			return nil
		})
	}
	g.Wait()
	s.logger.Printf("queuectl: all workers shut down")
	return nil
}

// StopAll is the out-of-process shutdown path: it asks every worker
// registered in the directory to terminate, without requiring the
// supervisor that spawned them. Workers whose process no longer exists
// are treated as already gone and their directory entries are cleaned
// up. After the grace period has elapsed, StopAll returns the workers
// that are still registered so the caller can report or escalate.
func StopAll(ctx context.Context, registry Registry, grace time.Duration, logger Logger) ([]*WorkerInfo, error) {
	if logger == nil {
		logger = stdLogger{}
	}
	workers, err := registry.Active(ctx)
	if err != nil {
		return nil, err
	}
	for _, w := range workers {
		err := syscall.Kill(w.PID, syscall.SIGTERM)
		switch {
		case err == nil:
			logger.Printf("queuectl: sent SIGTERM to worker %d", w.PID)
		case errors.Is(err, syscall.ESRCH):
			logger.Printf("queuectl: worker %d no longer exists, cleaning directory entry", w.PID)
			if err := registry.Unregister(ctx, w.PID); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("queuectl: stop worker %d: %w", w.PID, err)
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(grace):
	}

	remaining, err := registry.Active(ctx)
	if err != nil {
		return nil, err
	}
	for _, w := range remaining {
		logger.Printf("queuectl: worker %d still registered after grace period", w.PID)
	}
	return remaining, nil
}
