package sentry

import (
	"context"
	"sync"
	"testing"
)

func TestShardPool_PerKeyOrdering(t *testing.T) {
	pool := newShardPool(8, 64)
	defer pool.Close()
	ctx := context.Background()

	const n = 200
	var mu sync.Mutex
	got := make([]int, 0, n)
	var wg sync.WaitGroup
	wg.Add(n)

	key := shardKey("store-1", "entrance", "loitering")
	for i := 0; i < n; i++ {
		i := i
		if err := pool.Submit(ctx, key, func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d, submissions reordered", v, i)
		}
	}
}

func TestShardPool_DistinctKeysRunIndependently(t *testing.T) {
	pool := newShardPool(8, 64)
	defer pool.Close()
	ctx := context.Background()

	// One task per key; all must complete even though keys hash to
	// different workers.
	var wg sync.WaitGroup
	keys := []string{
		shardKey("store-1", "entrance", "loitering"),
		shardKey("store-1", "checkout", "loitering"),
		shardKey("store-2", "entrance", "crowd_density"),
		shardKey("store-3", "exit", "zone_dwell"),
	}
	var mu sync.Mutex
	done := map[string]bool{}

	for _, key := range keys {
		key := key
		wg.Add(1)
		if err := pool.Submit(ctx, key, func() {
			mu.Lock()
			done[key] = true
			mu.Unlock()
			wg.Done()
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()

	if len(done) != len(keys) {
		t.Errorf("%d keys completed, want %d", len(done), len(keys))
	}
}

func TestShardPool_SubmitHonorsContext(t *testing.T) {
	// Single shard with a single-slot queue, blocked by a stuck task.
	pool := newShardPool(1, 1)
	defer pool.Close()

	release := make(chan struct{})
	defer close(release)

	if err := pool.Submit(context.Background(), "k", func() { <-release }); err != nil {
		t.Fatalf("Submit blocker: %v", err)
	}
	// Fill the queue slot behind the running task.
	if err := pool.Submit(context.Background(), "k", func() {}); err != nil {
		t.Fatalf("Submit filler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pool.Submit(ctx, "k", func() {}); err != context.Canceled {
		t.Errorf("Submit on full queue with cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestShardPool_CloseDrainsQueuedWork(t *testing.T) {
	pool := newShardPool(4, 64)
	ctx := context.Background()

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 50; i++ {
		if err := pool.Submit(ctx, shardKey("store-1", "entrance", "loitering"), func() {
			mu.Lock()
			ran++
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	pool.Close()
	if ran != 50 {
		t.Errorf("%d tasks ran after Close, want 50", ran)
	}

	// Close is idempotent.
	pool.Close()
}
