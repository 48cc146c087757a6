package sentry

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/AvaQuinn/storesight/internal/testutil"
	"github.com/AvaQuinn/storesight/pkg/behavior"
	"go.uber.org/zap"
)

func newTestBuilder(t *testing.T, s *SentryStore, cfg SentryConfig) *BaselineBuilder {
	t.Helper()
	pool := newShardPool(4, 16)
	t.Cleanup(pool.Close)
	return NewBaselineBuilder(s, pool, cfg, zap.NewNop())
}

func seedEvents(t *testing.T, s *SentryStore, n int, value float64, opts ...func(*behavior.Event)) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		e := testutil.NewEvent(append([]func(*behavior.Event){
			testutil.WithDuration(value),
			testutil.WithTimestamp(base.Add(time.Duration(i) * time.Second)),
		}, opts...)...)
		if err := s.InsertEvent(ctx, &e); err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}
}

func TestBuildBatch_RequiresStoreID(t *testing.T) {
	s := testStore(t)
	b := newTestBuilder(t, s, DefaultConfig())

	if _, err := b.BuildBatch(context.Background(), "", BatchOptions{}); err == nil {
		t.Error("BuildBatch with empty store id succeeded, want error")
	}
}

func TestBuildBatch_BuildsProfile(t *testing.T) {
	s := testStore(t)
	cfg := DefaultConfig()
	cfg.MinSampleSize = 3
	b := newTestBuilder(t, s, cfg)
	ctx := context.Background()

	// All in the same (area, type, window) group; values 10, 10, 10, 30.
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	for i, v := range []float64{10, 10, 10, 30} {
		e := testutil.NewEvent(
			testutil.WithDuration(v),
			testutil.WithTimestamp(base.Add(time.Duration(i)*time.Minute)),
		)
		if err := s.InsertEvent(ctx, &e); err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}

	result, err := b.BuildBatch(ctx, "store-1", BatchOptions{})
	if err != nil {
		t.Fatalf("BuildBatch: %v", err)
	}
	if len(result.Built) != 1 || len(result.Skipped) != 0 || len(result.Failed) != 0 {
		t.Fatalf("result = %+v, want 1 built", result)
	}

	p, err := s.Get(ctx, "store-1", "electronics", behavior.EventLoitering, "hour_14_weekday")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p == nil {
		t.Fatal("no profile built")
	}
	// mean = 15, population variance = (25+25+25+225)/4 = 75.
	if math.Abs(p.Mean-15.0) > 1e-9 {
		t.Errorf("Mean = %v, want 15", p.Mean)
	}
	if math.Abs(p.StdDev-math.Sqrt(75)) > 1e-9 {
		t.Errorf("StdDev = %v, want %v", p.StdDev, math.Sqrt(75))
	}
	if p.Samples != 4 {
		t.Errorf("Samples = %d, want 4", p.Samples)
	}
}

func TestBuildBatch_SkipsUndersizedGroups(t *testing.T) {
	s := testStore(t)
	cfg := DefaultConfig()
	cfg.MinSampleSize = 5
	b := newTestBuilder(t, s, cfg)
	ctx := context.Background()

	seedEvents(t, s, 6, 20, testutil.WithArea("checkout"))
	seedEvents(t, s, 2, 20, testutil.WithArea("entrance"))

	result, err := b.BuildBatch(ctx, "store-1", BatchOptions{})
	if err != nil {
		t.Fatalf("BuildBatch: %v", err)
	}
	if len(result.Built) != 1 || result.Built[0].Area != "checkout" {
		t.Errorf("Built = %+v, want just checkout", result.Built)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Area != "entrance" {
		t.Errorf("Skipped = %+v, want just entrance", result.Skipped)
	}

	// The skipped group must leave no profile behind.
	p, err := s.Get(ctx, "store-1", "entrance", behavior.EventLoitering, "hour_14_weekday")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p != nil {
		t.Errorf("skipped group produced a profile: %+v", p)
	}
}

func TestBuildBatch_AreaFilter(t *testing.T) {
	s := testStore(t)
	cfg := DefaultConfig()
	cfg.MinSampleSize = 2
	b := newTestBuilder(t, s, cfg)
	ctx := context.Background()

	seedEvents(t, s, 3, 10, testutil.WithArea("checkout"))
	seedEvents(t, s, 3, 10, testutil.WithArea("entrance"))

	result, err := b.BuildBatch(ctx, "store-1", BatchOptions{Area: "checkout"})
	if err != nil {
		t.Fatalf("BuildBatch: %v", err)
	}
	if len(result.Built) != 1 || result.Built[0].Area != "checkout" {
		t.Errorf("Built = %+v, want just checkout", result.Built)
	}
}

func TestBuildBatch_Idempotent(t *testing.T) {
	s := testStore(t)
	cfg := DefaultConfig()
	cfg.MinSampleSize = 3
	b := newTestBuilder(t, s, cfg)
	ctx := context.Background()

	seedEvents(t, s, 5, 12)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := b.BuildBatch(ctx, "store-1", BatchOptions{Since: since})
	if err != nil {
		t.Fatalf("first BuildBatch: %v", err)
	}
	p1, err := s.Get(ctx, "store-1", "electronics", behavior.EventLoitering, "hour_14_weekday")
	if err != nil || p1 == nil {
		t.Fatalf("Get after first build: %v %v", p1, err)
	}

	second, err := b.BuildBatch(ctx, "store-1", BatchOptions{Since: since})
	if err != nil {
		t.Fatalf("second BuildBatch: %v", err)
	}
	p2, err := s.Get(ctx, "store-1", "electronics", behavior.EventLoitering, "hour_14_weekday")
	if err != nil || p2 == nil {
		t.Fatalf("Get after second build: %v %v", p2, err)
	}

	if len(first.Built) != len(second.Built) {
		t.Errorf("built counts differ: %d then %d", len(first.Built), len(second.Built))
	}
	if p1.Mean != p2.Mean || p1.StdDev != p2.StdDev || p1.Samples != p2.Samples {
		t.Errorf("rerun changed the profile: %+v then %+v", p1, p2)
	}
}

func TestBuildBatch_CancelledContext(t *testing.T) {
	s := testStore(t)
	cfg := DefaultConfig()
	cfg.MinSampleSize = 2
	b := newTestBuilder(t, s, cfg)

	seedEvents(t, s, 3, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.BuildBatch(ctx, "store-1", BatchOptions{})
	if err == nil {
		t.Error("BuildBatch with cancelled context succeeded, want error")
	}
}

func TestStreamUpdate_SeedsAndReturnsPrior(t *testing.T) {
	s := testStore(t)
	b := newTestBuilder(t, s, DefaultConfig())
	ctx := context.Background()

	e := testutil.NewEvent(testutil.WithDuration(25))

	prior, err := b.StreamUpdate(ctx, &e)
	if err != nil {
		t.Fatalf("StreamUpdate: %v", err)
	}
	if prior != nil {
		t.Errorf("prior on fresh key = %+v, want nil", prior)
	}

	p, err := s.Get(ctx, e.StoreID, e.Area, e.Type, "hour_14_weekday")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p == nil {
		t.Fatal("seed update left no profile")
	}
	if p.Mean != 25 || p.StdDev != behavior.MinStdDev || p.Samples != 1 {
		t.Errorf("seeded profile = %+v", p)
	}

	// Second event on the same key: the returned prior is the seed state.
	e2 := testutil.NewEvent(testutil.WithDuration(35))
	prior, err = b.StreamUpdate(ctx, &e2)
	if err != nil {
		t.Fatalf("second StreamUpdate: %v", err)
	}
	if prior == nil || prior.Mean != 25 || prior.Samples != 1 {
		t.Errorf("prior = %+v, want the seed state", prior)
	}

	p, err = s.Get(ctx, e.StoreID, e.Area, e.Type, "hour_14_weekday")
	if err != nil || p == nil {
		t.Fatalf("Get after second update: %v %v", p, err)
	}
	// mean' = 0.2*35 + 0.8*25 = 27.
	if math.Abs(p.Mean-27.0) > 1e-9 {
		t.Errorf("Mean = %v, want 27", p.Mean)
	}
	if p.Samples != 2 {
		t.Errorf("Samples = %d, want 2", p.Samples)
	}
}
