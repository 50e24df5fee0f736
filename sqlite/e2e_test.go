package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"queuectl"
	"queuectl/sqlite"
)

type nopLogger struct{}

func (nopLogger) Printf(format string, v ...interface{}) {}

// waitForState polls the store until the job reaches state or the
// deadline passes.
func waitForState(t *testing.T, st *sqlite.Store, id, state string) *queuectl.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := st.Lookup(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if job.State == state {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s stuck in state %q, want %q", id, job.State, state)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorkerExecutesCommandToCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.Start(ctx); err != nil {
		t.Fatal(err)
	}

	job := &queuectl.Job{ID: "ok", Command: "exit 0"}
	if err := st.Add(ctx, job); err != nil {
		t.Fatal(err)
	}

	w := queuectl.NewWorker(st,
		queuectl.SetRegistry(st.Registry()),
		queuectl.SetPollInterval(10*time.Millisecond),
		queuectl.SetLogger(nopLogger{}),
	)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	got := waitForState(t, st, "ok", queuectl.StateCompleted)
	if want, have := 0, got.Attempts; want != have {
		t.Fatalf("want %d attempts, have %d", want, have)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestWorkerMovesFailingCommandToDeadLetterQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// max_retries of 1 moves the job to dead on the first failure, so
	// the test does not have to wait out a backoff delay.
	job := &queuectl.Job{ID: "bad", Command: "exit 1", MaxRetries: 1}
	if err := st.Add(ctx, job); err != nil {
		t.Fatal(err)
	}

	w := queuectl.NewWorker(st,
		queuectl.SetRegistry(st.Registry()),
		queuectl.SetPollInterval(10*time.Millisecond),
		queuectl.SetLogger(nopLogger{}),
	)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	got := waitForState(t, st, "bad", queuectl.StateDead)
	if want, have := 1, got.Attempts; want != have {
		t.Fatalf("want %d attempts, have %d", want, have)
	}
	if got.RunAt != nil {
		t.Fatalf("expected no retry time, have %v", *got.RunAt)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}
