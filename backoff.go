package queuectl

import (
	"math"
	"time"
)

// Backoff returns the delay before the next execution attempt of a job
// that has failed attempts times: base^attempts seconds. It performs
// exponential backoff.
func Backoff(base, attempts int) time.Duration {
	if attempts <= 0 {
		return time.Duration(0)
	}
	return time.Duration(math.Pow(float64(base), float64(attempts))) * time.Second
}

// ApplyFailure advances job through the failure transition: the attempt
// count is incremented, and the job either becomes failed with a run_at
// of now plus the exponential backoff for the new attempt count, or
// dead (with no run_at) once the count reaches MaxRetries. Stores call
// this inside Fail and persist the resulting row in a single write.
func ApplyFailure(job *Job, base int, now time.Time) {
	job.Attempts++
	job.UpdatedAt = now
	if job.Attempts >= job.MaxRetries {
		job.State = StateDead
		job.RunAt = nil
		return
	}
	job.State = StateFailed
	runAt := now.Add(Backoff(base, job.Attempts))
	job.RunAt = &runAt
}
