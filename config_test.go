package queuectl

import (
	"context"
	"testing"
)

func TestIntSetting(t *testing.T) {
	ctx := context.Background()
	cfg := NewMapConfig()

	n, err := IntSetting(ctx, cfg, KeyMaxRetries, DefaultMaxRetries)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := DefaultMaxRetries, n; want != have {
		t.Fatalf("want %d, have %d", want, have)
	}

	if err := cfg.Set(ctx, KeyMaxRetries, "7"); err != nil {
		t.Fatal(err)
	}
	n, err = IntSetting(ctx, cfg, KeyMaxRetries, DefaultMaxRetries)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 7, n; want != have {
		t.Fatalf("want %d, have %d", want, have)
	}

	// Garbage falls back to the default instead of failing
	if err := cfg.Set(ctx, KeyMaxRetries, "not-a-number"); err != nil {
		t.Fatal(err)
	}
	n, err = IntSetting(ctx, cfg, KeyMaxRetries, DefaultMaxRetries)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := DefaultMaxRetries, n; want != have {
		t.Fatalf("want %d, have %d", want, have)
	}
}

func TestMapConfigAll(t *testing.T) {
	ctx := context.Background()
	cfg := NewMapConfig()
	if err := cfg.Set(ctx, KeyMaxRetries, "5"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Set(ctx, KeyBackoffBase, "3"); err != nil {
		t.Fatal(err)
	}
	values, err := cfg.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 2, len(values); want != have {
		t.Fatalf("want %d values, have %d", want, have)
	}
	if want, have := "5", values[KeyMaxRetries]; want != have {
		t.Fatalf("want %q, have %q", want, have)
	}
}
