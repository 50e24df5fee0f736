package queuectl

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInMemoryStoreAddDefaults(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore(nil)

	job := &Job{Command: "echo hello"}
	if err := st.Add(ctx, job); err != nil {
		t.Fatal(err)
	}
	if job.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
	if want, have := StatePending, job.State; want != have {
		t.Fatalf("want state %q, have %q", want, have)
	}
	if want, have := DefaultMaxRetries, job.MaxRetries; want != have {
		t.Fatalf("want max retries %d, have %d", want, have)
	}
	if want, have := 0, job.Attempts; want != have {
		t.Fatalf("want %d attempts, have %d", want, have)
	}
}

func TestInMemoryStoreAddReadsConfiguredMaxRetries(t *testing.T) {
	ctx := context.Background()
	cfg := NewMapConfig()
	if err := cfg.Set(ctx, KeyMaxRetries, "5"); err != nil {
		t.Fatal(err)
	}
	st := NewInMemoryStore(cfg)

	job := &Job{Command: "echo hello"}
	if err := st.Add(ctx, job); err != nil {
		t.Fatal(err)
	}
	if want, have := 5, job.MaxRetries; want != have {
		t.Fatalf("want max retries %d, have %d", want, have)
	}
}

func TestInMemoryStoreClaimIsFIFO(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore(nil)

	t0 := time.Now().UTC().Add(-2 * time.Second)
	first := &Job{ID: "a", Command: "echo 1", CreatedAt: t0}
	second := &Job{ID: "b", Command: "echo 2", CreatedAt: t0.Add(time.Second)}
	if err := st.Add(ctx, second); err != nil {
		t.Fatal(err)
	}
	if err := st.Add(ctx, first); err != nil {
		t.Fatal(err)
	}

	got, err := st.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a job")
	}
	if want, have := "a", got.ID; want != have {
		t.Fatalf("want job %q, have %q", want, have)
	}
	if want, have := StateProcessing, got.State; want != have {
		t.Fatalf("want state %q, have %q", want, have)
	}
}

func TestInMemoryStoreClaimEligibility(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore(nil)

	job := &Job{ID: "a", Command: "false", MaxRetries: 3}
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

	// Backoff has not elapsed yet
	got, err := st.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected no eligible job, have %v", got)
	}
}

func TestInMemoryStoreClaimEmpty(t *testing.T) {
	st := NewInMemoryStore(nil)

	got, err := st.Claim(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected no job, have %v", got)
	}
}

func TestInMemoryStoreConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore(nil)

	const jobs = 5
	const claimers = 20
	for i := 0; i < jobs; i++ {
		if err := st.Add(ctx, &Job{Command: "true"}); err != nil {
			t.Fatal(err)
		}
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]int)
	)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := st.Claim(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			if job == nil {
				return
			}
			mu.Lock()
			ids[job.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if want, have := jobs, len(ids); want != have {
		t.Fatalf("want %d distinct claimed jobs, have %d", want, have)
	}
	for id, n := range ids {
		if n != 1 {
			t.Fatalf("job %s claimed %d times", id, n)
		}
	}
}

func TestInMemoryStoreFailUntilDead(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore(nil)

	job := &Job{ID: "a", Command: "false", MaxRetries: 2}
	if err := st.Add(ctx, job); err != nil {
		t.Fatal(err)
	}
	claimed, err := st.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Fail(ctx, claimed); err != nil {
		t.Fatal(err)
	}
	if want, have := StateFailed, claimed.State; want != have {
		t.Fatalf("want state %q, have %q", want, have)
	}
	if err := st.Fail(ctx, claimed); err != nil {
		t.Fatal(err)
	}
	if want, have := StateDead, claimed.State; want != have {
		t.Fatalf("want state %q, have %q", want, have)
	}

	got, err := st.Lookup(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if want, have := StateDead, got.State; want != have {
		t.Fatalf("want state %q, have %q", want, have)
	}
	if got.RunAt != nil {
		t.Fatalf("expected no retry time, have %v", *got.RunAt)
	}
}

func TestInMemoryStoreRequeue(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore(nil)

	job := &Job{ID: "a", Command: "false", MaxRetries: 1}
	if err := st.Add(ctx, job); err != nil {
		t.Fatal(err)
	}

	// Not dead yet
	ok, err := st.Requeue(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected requeue of a pending job to report false")
	}

	claimed, err := st.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Fail(ctx, claimed); err != nil {
		t.Fatal(err)
	}

	ok, err = st.Requeue(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected requeue of a dead job to report true")
	}
	got, err := st.Lookup(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if want, have := StatePending, got.State; want != have {
		t.Fatalf("want state %q, have %q", want, have)
	}
	if want, have := 0, got.Attempts; want != have {
		t.Fatalf("want %d attempts, have %d", want, have)
	}

	ok, err = st.Requeue(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected requeue of an unknown job to report false")
	}
}

func TestInMemoryStoreCompleteIsTerminal(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore(nil)

	job := &Job{ID: "a", Command: "true"}
	if err := st.Add(ctx, job); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Claim(ctx); err != nil {
		t.Fatal(err)
	}
	if err := st.Complete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	// Completing twice is harmless
	if err := st.Complete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := st.Complete(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("want %v, have %v", ErrNotFound, err)
	}

	// A completed job is never claimed again
	got, err := st.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected no job, have %v", got)
	}
}

func TestInMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore(nil)

	t0 := time.Now().UTC().Add(-time.Minute)
	for i, id := range []string{"a", "b", "c"} {
		job := &Job{ID: id, Command: "true", CreatedAt: t0.Add(time.Duration(i) * time.Second)}
		if err := st.Add(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := st.List(ctx, &ListRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 3, len(jobs); want != have {
		t.Fatalf("want %d jobs, have %d", want, have)
	}
	if want, have := "a", jobs[0].ID; want != have {
		t.Fatalf("want job %q first, have %q", want, have)
	}

	jobs, err = st.List(ctx, &ListRequest{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 1, len(jobs); want != have {
		t.Fatalf("want %d jobs, have %d", want, have)
	}
	if want, have := "b", jobs[0].ID; want != have {
		t.Fatalf("want job %q, have %q", want, have)
	}

	jobs, err = st.List(ctx, &ListRequest{State: StateProcessing})
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 0, len(jobs); want != have {
		t.Fatalf("want %d jobs, have %d", want, have)
	}
}

func TestInMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore(nil)

	for i := 0; i < 3; i++ {
		if err := st.Add(ctx, &Job{Command: "true"}); err != nil {
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
	if want, have := (Stats{Pending: 2, Completed: 1}), *stats; want != have {
		t.Fatalf("want %+v, have %+v", want, have)
	}
}
