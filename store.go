package queuectl

import (
	"context"
	"errors"
)

var (
	// ErrNotFound must be returned from Store implementations when a
	// certain job could not be found in the specific data store.
	ErrNotFound = errors.New("queuectl: job not found")
)

// Store implements persistent storage of jobs. It is the single source
// of truth for job state: every mutation of a job's persisted fields
// goes through one of its operations, and each operation is atomic with
// respect to all others.
type Store interface {
	// Start is called once before the store is used. This is a good
	// time to create the schema.
	Start(ctx context.Context) error

	// Add puts a new job into the queue in the pending state with zero
	// attempts. It assigns a fresh identifier if the job has none and
	// defaults MaxRetries from configuration when unset. The passed job
	// is updated to the persisted values.
	Add(ctx context.Context, job *Job) error

	// Claim picks the next job to execute and atomically moves it into
	// the processing state. A job is eligible if it is pending, or
	// failed with an elapsed run_at. Jobs are claimed oldest first,
	// ties broken by id. The select-then-update must execute as a
	// single atomic unit with respect to every other store operation:
	// a concurrent claimer blocks until the first commits and then
	// re-evaluates eligibility, so two callers can never obtain the
	// same job.
	//
	// If no job is eligible, Claim returns nil for both the job and
	// the error, without side effects.
	Claim(ctx context.Context) (*Job, error)

	// Complete marks the job as completed. Completing an already
	// completed job is a harmless no-op; an unknown id returns
	// ErrNotFound.
	Complete(ctx context.Context, id string) error

	// Fail records a failed execution attempt on job, as obtained from
	// Claim. The store increments the attempt count, applies the retry
	// policy (failed with backoff, or dead once the count reaches
	// MaxRetries) and persists the resulting row in one atomic write.
	// The passed job is updated to the persisted result.
	Fail(ctx context.Context, job *Job) error

	// Requeue moves a dead job back to pending, resetting its attempt
	// count and backoff. It reports false without mutating anything if
	// the job does not exist or is not dead. The state check and the
	// update must be a single conditional write.
	Requeue(ctx context.Context, id string) (bool, error)

	// Lookup returns the details of a job by its identifier.
	// If the job could not be found, ErrNotFound must be returned.
	Lookup(ctx context.Context, id string) (*Job, error)

	// List returns jobs filtered by the ListRequest, oldest first.
	List(ctx context.Context, req *ListRequest) ([]*Job, error)

	// Stats returns the number of jobs per state.
	Stats(ctx context.Context) (*Stats, error)
}

// ListRequest specifies a filter for listing jobs.
type ListRequest struct {
	State  string // filter by job state
	Limit  int    // maximum number of jobs to return
	Offset int    // number of jobs to skip (for pagination)
}
