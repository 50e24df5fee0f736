package queuectl

import "time"

const (
	// Waiting for a worker to claim it.
	StatePending string = "pending"
	// StateProcessing is the state for jobs currently claimed by a worker.
	StateProcessing string = "processing"
	// Finished with a zero exit status. Terminal.
	StateCompleted string = "completed"
	// Failed and waiting out a backoff delay before the next attempt.
	StateFailed string = "failed"
	// StateDead is reached once retries are exhausted. Dead jobs form the
	// dead-letter queue and only leave it through an explicit Requeue.
	StateDead string = "dead"
)

// States lists every job state.
var States = []string{
	StatePending,
	StateProcessing,
	StateCompleted,
	StateFailed,
	StateDead,
}

// Job is a shell command that needs to be executed.
type Job struct {
	ID         string     `json:"id"`               // unique identifier, assigned by Add, never reused
	Command    string     `json:"command"`          // opaque command line, executed via "sh -c"
	State      string     `json:"state"`            // current state
	Attempts   int        `json:"attempts"`         // number of execution attempts so far
	MaxRetries int        `json:"max_retries"`      // attempts ceiling before the job is declared dead
	CreatedAt  time.Time  `json:"created_at"`       // time when Add was called
	UpdatedAt  time.Time  `json:"updated_at"`       // time of the last state transition
	RunAt      *time.Time `json:"run_at,omitempty"` // earliest time a failed job may be claimed again
}

// claimable reports whether the job is eligible for Claim at the given
// time: pending, or failed with an elapsed backoff delay.
func (j *Job) claimable(now time.Time) bool {
	switch j.State {
	case StatePending:
		return true
	case StateFailed:
		return j.RunAt != nil && !j.RunAt.After(now)
	}
	return false
}
