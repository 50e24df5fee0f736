package queuectl

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		base     int
		attempts int
		want     time.Duration
	}{
		{base: 2, attempts: 0, want: 0},
		{base: 2, attempts: 1, want: 2 * time.Second},
		{base: 2, attempts: 2, want: 4 * time.Second},
		{base: 2, attempts: 3, want: 8 * time.Second},
		{base: 3, attempts: 2, want: 9 * time.Second},
		{base: 1, attempts: 5, want: 1 * time.Second},
		{base: 2, attempts: -1, want: 0},
	}
	for _, tt := range tests {
		if want, have := tt.want, Backoff(tt.base, tt.attempts); want != have {
			t.Errorf("Backoff(%d, %d): want %v, have %v", tt.base, tt.attempts, want, have)
		}
	}
}

func TestApplyFailureSchedulesRetry(t *testing.T) {
	now := time.Date(2021, 5, 1, 12, 0, 0, 0, time.UTC)
	job := &Job{ID: "1", State: StateProcessing, MaxRetries: 3}

	ApplyFailure(job, 2, now)
	if want, have := StateFailed, job.State; want != have {
		t.Fatalf("want state %q, have %q", want, have)
	}
	if want, have := 1, job.Attempts; want != have {
		t.Fatalf("want %d attempts, have %d", want, have)
	}
	if job.RunAt == nil {
		t.Fatal("expected a retry time")
	}
	if want, have := now.Add(2*time.Second), *job.RunAt; !want.Equal(have) {
		t.Fatalf("want retry at %v, have %v", want, have)
	}

	ApplyFailure(job, 2, now)
	if want, have := now.Add(4*time.Second), *job.RunAt; !want.Equal(have) {
		t.Fatalf("want retry at %v, have %v", want, have)
	}
}

func TestApplyFailureMovesJobToDead(t *testing.T) {
	now := time.Now().UTC()
	job := &Job{ID: "1", State: StateProcessing, Attempts: 2, MaxRetries: 3}

	ApplyFailure(job, 2, now)
	if want, have := StateDead, job.State; want != have {
		t.Fatalf("want state %q, have %q", want, have)
	}
	if want, have := 3, job.Attempts; want != have {
		t.Fatalf("want %d attempts, have %d", want, have)
	}
	if job.RunAt != nil {
		t.Fatalf("expected no retry time, have %v", *job.RunAt)
	}
}
