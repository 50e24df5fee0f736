package queuectl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	// DefaultPollInterval is the sleep between claim attempts while the
	// queue is idle.
	DefaultPollInterval = 1 * time.Second

	// DefaultExecTimeout is the hard ceiling on the runtime of a single
	// command.
	DefaultExecTimeout = 30 * time.Second
)

func nop() {}

// Worker is a single process competing for jobs. It registers its
// identity with the Registry, then repeatedly claims a job from the
// store, executes its command and reports the outcome, until its
// context is canceled. Create a new worker via NewWorker.
type Worker struct {
	store    Store
	registry Registry
	runner   Runner
	logger   Logger
	pid      int
	poll     time.Duration

	testJobClaimed   func() // testing hook
	testJobSucceeded func() // testing hook
	testJobFailed    func() // testing hook
}

// NewWorker creates a new worker. Pass options to NewWorker to
// configure it.
func NewWorker(store Store, options ...WorkerOption) *Worker {
	w := &Worker{
		store:            store,
		registry:         NewInMemoryRegistry(),
		runner:           ShellRunner{Timeout: DefaultExecTimeout},
		logger:           stdLogger{},
		pid:              os.Getpid(),
		poll:             DefaultPollInterval,
		testJobClaimed:   nop,
		testJobSucceeded: nop,
		testJobFailed:    nop,
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// -- Configuration --

// WorkerOption is the signature of an options provider.
type WorkerOption func(*Worker)

// SetRegistry specifies the worker directory to register with.
func SetRegistry(registry Registry) WorkerOption {
	return func(w *Worker) {
		if registry != nil {
			w.registry = registry
		}
	}
}

// SetRunner specifies how the worker executes job commands. A shell
// runner with the default timeout is used by default.
func SetRunner(runner Runner) WorkerOption {
	return func(w *Worker) {
		if runner != nil {
			w.runner = runner
		}
	}
}

// SetPollInterval specifies how long the worker sleeps between claim
// attempts while the queue is idle.
func SetPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.poll = d
		}
	}
}

// SetLogger specifies the logger to use when e.g. reporting errors.
func SetLogger(logger Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// SetPID overrides the identity the worker registers under. It is the
// worker's own process id by default.
func SetPID(pid int) WorkerOption {
	return func(w *Worker) {
		w.pid = pid
	}
}

// -- Run --

// Run executes the worker loop until ctx is canceled or the store
// becomes unavailable. Cancellation is advisory: it only takes effect
// between jobs, so an in-flight job may finish and report its outcome
// before Run returns. A job's execution failure never ends the loop;
// only store errors do, and those are returned so the supervising
// process can treat the exit as a crash.
func (w *Worker) Run(ctx context.Context) error {
	info := &WorkerInfo{PID: w.pid, StartedAt: time.Now().UTC()}
	if err := w.registry.Register(ctx, info); err != nil {
		return fmt.Errorf("queuectl: register worker %d: %w", w.pid, err)
	}
	defer func() {
		// ctx is usually canceled by the time we get here.
		uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.registry.Unregister(uctx, w.pid); err != nil {
			w.logger.Printf("queuectl: worker %d unregister: %v", w.pid, err)
		}
	}()

	w.logger.Printf("queuectl: worker %d started and registered", w.pid)
	defer w.logger.Printf("queuectl: worker %d stopped and unregistered", w.pid)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, err := w.store.Claim(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("queuectl: worker %d claim: %w", w.pid, err)
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.poll):
			}
			continue
		}
		w.testJobClaimed()
		if err := w.process(ctx, job); err != nil {
			return err
		}
	}
}

// process executes a single claimed job and reports its outcome back to
// the store. Outcomes are reported with an uncancelable context so that
// a shutdown during execution cannot lose the job's state transition.
func (w *Worker) process(ctx context.Context, job *Job) error {
	w.logger.Printf("queuectl: worker %d processing job %s: %s", w.pid, job.ID, job.Command)

	execErr := w.runner.Run(ctx, job.Command)
	rctx := context.WithoutCancel(ctx)
	if execErr == nil {
		if err := w.store.Complete(rctx, job.ID); err != nil {
			return fmt.Errorf("queuectl: worker %d complete job %s: %w", w.pid, job.ID, err)
		}
		w.logger.Printf("queuectl: worker %d job %s completed", w.pid, job.ID)
		w.testJobSucceeded()
		return nil
	}

	w.logger.Printf("queuectl: worker %d job %s failed: %v", w.pid, job.ID, execErr)
	if err := w.store.Fail(rctx, job); err != nil {
		return fmt.Errorf("queuectl: worker %d fail job %s: %w", w.pid, job.ID, err)
	}
	w.testJobFailed()
	return nil
}
