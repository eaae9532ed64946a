package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kittoju/flume/internal/errors"
)

func TestLookupMissThenHit(t *testing.T) {
	var fetches int32
	store := New(func(ctx context.Context, key string) (any, error) {
		atomic.AddInt32(&fetches, 1)
		return "descriptor:" + key, nil
	}, nil)

	ctx := context.Background()

	first, err := store.Lookup(ctx, "u1")
	if err != nil {
		t.Fatalf("first lookup failed: %v", err)
	}
	if first != "descriptor:u1" {
		t.Errorf("first lookup: got %v", first)
	}

	second, err := store.Lookup(ctx, "u1")
	if err != nil {
		t.Fatalf("second lookup failed: %v", err)
	}
	if second != first {
		t.Errorf("second lookup: got %v, want %v", second, first)
	}

	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("fetches: got %d, want 1", n)
	}
}

func TestLookupConcurrentSingleFetch(t *testing.T) {
	var fetches int32
	release := make(chan struct{})
	store := New(func(ctx context.Context, key string) (any, error) {
		atomic.AddInt32(&fetches, 1)
		<-release
		return key, nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Lookup(context.Background(), "c1"); err != nil {
				t.Errorf("lookup failed: %v", err)
			}
		}()
	}

	close(release)
	wg.Wait()

	// With the in-flight guard, racing lookups collapse into very few
	// fetches; without it every goroutine would fetch.
	if n := atomic.LoadInt32(&fetches); n > 2 {
		t.Errorf("fetches: got %d, want at most 2", n)
	}
}

func TestLookupFailureDoesNotPoison(t *testing.T) {
	var fetches int32
	store := New(func(ctx context.Context, key string) (any, error) {
		if atomic.AddInt32(&fetches, 1) == 1 {
			return nil, errors.Transient("backend down")
		}
		return "ok", nil
	}, nil)

	ctx := context.Background()

	if _, err := store.Lookup(ctx, "k"); err == nil {
		t.Fatal("first lookup should fail")
	}
	if _, ok := store.Peek("k"); ok {
		t.Fatal("failed fetch must not populate the cache")
	}

	value, err := store.Lookup(ctx, "k")
	if err != nil {
		t.Fatalf("retry lookup failed: %v", err)
	}
	if value != "ok" {
		t.Errorf("retry lookup: got %v", value)
	}
}

func TestLookupEmptyKey(t *testing.T) {
	store := New(nil, nil)
	if _, err := store.Lookup(context.Background(), ""); !errors.IsCategory(err, errors.ErrNotFound) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestLookupNoFetcher(t *testing.T) {
	store := New(nil, nil)
	if _, err := store.Lookup(context.Background(), "k"); !errors.IsCategory(err, errors.ErrNotFound) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestSeedAndPeek(t *testing.T) {
	store := New(nil, nil)
	store.Seed("u1", "alice")

	value, ok := store.Peek("u1")
	if !ok || value != "alice" {
		t.Errorf("peek: got %v, %v", value, ok)
	}
	if store.Len() != 1 {
		t.Errorf("len: got %d", store.Len())
	}

	// Seeded entries satisfy lookups without a fetcher.
	got, err := store.Lookup(context.Background(), "u1")
	if err != nil || got != "alice" {
		t.Errorf("lookup after seed: got %v, %v", got, err)
	}
}

type capPolicy struct{ max int }

func (p capPolicy) OnStore(key string, size int) []string {
	if size > p.max {
		return []string{key}
	}
	return nil
}

func TestEvictionPolicy(t *testing.T) {
	store := New(nil, capPolicy{max: 1})
	store.Seed("a", 1)
	store.Seed("b", 2)

	if store.Len() != 1 {
		t.Errorf("len after eviction: got %d, want 1", store.Len())
	}
	if _, ok := store.Peek("a"); !ok {
		t.Error("first entry should survive")
	}
}

func TestLookupCanceledContext(t *testing.T) {
	started := make(chan struct{})
	store := New(func(ctx context.Context, key string) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	if _, err := store.Lookup(ctx, "k"); err == nil {
		t.Error("expected error from canceled lookup")
	}
}
