package mongodb

import (
	"context"
	"os"
	"testing"

	"queuectl"
)

// newTestStore connects to the MongoDB instance named in the
// QUEUECTL_MONGODB_URL environment variable, e.g.
// mongodb://localhost/queuectl_test, and starts from empty
// collections. The tests are skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("QUEUECTL_MONGODB_URL")
	if url == "" {
		t.Skip("QUEUECTL_MONGODB_URL not set")
	}
	st, err := NewStore(url)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := st.Start(ctx); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{st.collectionName, st.collectionName + "_config", st.collectionName + "_workers"} {
		if _, err := st.db.C(name).RemoveAll(nil); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStoreAddAndClaim(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := &queuectl.Job{Command: "echo 1"}
	second := &queuectl.Job{Command: "echo 2"}
	if err := st.Add(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := st.Add(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := st.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a job")
	}
	if want, have := first.ID, got.ID; want != have {
		t.Fatalf("want job %q, have %q", want, have)
	}
	if want, have := queuectl.StateProcessing, got.State; want != have {
		t.Fatalf("want state %q, have %q", want, have)
	}
}

func TestStoreClaimEmpty(t *testing.T) {
	st := newTestStore(t)

	got, err := st.Claim(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected no job, have %v", got)
	}
}

func TestStoreFailUntilDead(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job := &queuectl.Job{Command: "false", MaxRetries: 1}
	if err := st.Add(ctx, job); err != nil {
		t.Fatal(err)
	}

	claimed, err := st.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil {
		t.Fatal("expected a job")
	}
	if err := st.Fail(ctx, claimed); err != nil {
		t.Fatal(err)
	}

	got, err := st.Lookup(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := queuectl.StateDead, got.State; want != have {
		t.Fatalf("want state %q, have %q", want, have)
	}

	ok, err := st.Requeue(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected requeue to succeed")
	}
	ok, err = st.Requeue(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected requeue of a pending job to report false")
	}
}

func TestStoreCompleteUnknownJob(t *testing.T) {
	st := newTestStore(t)

	err := st.Complete(context.Background(), "no-such-id")
	if want, have := queuectl.ErrNotFound, err; want != have {
		t.Fatalf("want %v, have %v", want, have)
	}
}

func TestStoreStats(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := st.Add(ctx, &queuectl.Job{Command: "true"}); err != nil {
			t.Fatal(err)
		}
	}
	claimed, err := st.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Complete(ctx, claimed.ID); err != nil {
		t.Fatal(err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 1, stats.Pending; want != have {
		t.Fatalf("want %d pending, have %d", want, have)
	}
	if want, have := 1, stats.Completed; want != have {
		t.Fatalf("want %d completed, have %d", want, have)
	}
}

func TestRegistry(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	reg := st.Registry()

	if err := reg.Register(ctx, &queuectl.WorkerInfo{PID: 42}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(ctx, &queuectl.WorkerInfo{PID: 7}); err != nil {
		t.Fatal(err)
	}
	workers, err := reg.Active(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 2, len(workers); want != have {
		t.Fatalf("want %d workers, have %d", want, have)
	}
	if want, have := 7, workers[0].PID; want != have {
		t.Fatalf("want pid %d first, have %d", want, have)
	}
	if err := reg.Unregister(ctx, 42); err != nil {
		t.Fatal(err)
	}
	workers, err = reg.Active(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 1, len(workers); want != have {
		t.Fatalf("want %d workers, have %d", want, have)
	}
}
