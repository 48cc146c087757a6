package sentry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/AvaQuinn/storesight/pkg/behavior"
	"go.uber.org/zap"
)

// GroupKey identifies one batch statistics group within a store.
type GroupKey struct {
	Area       string             `json:"area"`
	EventType  behavior.EventType `json:"event_type"`
	TimeWindow string             `json:"time_window"`
}

// GroupError records a group whose profile upsert failed. Failures are
// collected, not fatal: other groups proceed independently.
type GroupError struct {
	Key GroupKey `json:"key"`
	Err string   `json:"error"`
}

// BatchResult summarizes one batch build pass.
type BatchResult struct {
	StoreID string       `json:"store_id"`
	Built   []GroupKey   `json:"built"`
	Skipped []GroupKey   `json:"skipped"` // Below the minimum sample size
	Failed  []GroupError `json:"failed"`
}

// BatchOptions narrows a batch build. Zero values mean "no filter" and
// "default lookback".
type BatchOptions struct {
	Area      string
	EventType behavior.EventType
	Since     time.Time
}

// BaselineBuilder produces and maintains baseline profiles: batch seeding
// from historical events, then streaming EWMA refinement. Both paths share
// one value-extraction mapping and one standard deviation floor.
type BaselineBuilder struct {
	store  *SentryStore
	pool   *shardPool
	logger *zap.Logger

	alpha         float64
	minSampleSize int
	batchMaxAge   time.Duration
}

// NewBaselineBuilder creates a builder writing through the given shard pool.
func NewBaselineBuilder(store *SentryStore, pool *shardPool, cfg SentryConfig, logger *zap.Logger) *BaselineBuilder {
	return &BaselineBuilder{
		store:         store,
		pool:          pool,
		logger:        logger,
		alpha:         cfg.EWMAAlpha,
		minSampleSize: cfg.MinSampleSize,
		batchMaxAge:   cfg.BatchMaxAge,
	}
}

// BuildBatch recomputes baseline profiles for a store from historical
// events. Events after opts.Since (default now minus the batch lookback)
// are grouped by (area, event type, time window); each group meeting the
// minimum sample size gets a population mean/stddev profile upserted
// through the per-key shard pool. Undersized groups are skipped and logged.
//
// The pass is idempotent for a fixed input window and cancellable between
// groups; already-upserted groups are retained on cancellation because each
// upsert is an independent replace.
func (b *BaselineBuilder) BuildBatch(ctx context.Context, storeID string, opts BatchOptions) (*BatchResult, error) {
	if storeID == "" {
		return nil, fmt.Errorf("batch build requires a store id")
	}

	since := opts.Since
	if since.IsZero() {
		since = time.Now().Add(-b.batchMaxAge)
	}

	events, err := b.store.ListEvents(ctx, storeID, EventFilter{
		Area:      opts.Area,
		EventType: opts.EventType,
		Since:     since,
	})
	if err != nil {
		return nil, fmt.Errorf("load events for batch build: %w", err)
	}

	groups := make(map[GroupKey][]float64)
	for i := range events {
		e := &events[i]
		key := GroupKey{
			Area:       e.Area,
			EventType:  e.Type,
			TimeWindow: ClassifyTimeWindow(e.Timestamp),
		}
		groups[key] = append(groups[key], behavior.ExtractValue(e))
	}

	// Stable iteration order keeps logs and partial-progress behavior
	// reproducible across reruns.
	keys := make([]GroupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, c := keys[i], keys[j]
		if a.Area != c.Area {
			return a.Area < c.Area
		}
		if a.EventType != c.EventType {
			return a.EventType < c.EventType
		}
		return a.TimeWindow < c.TimeWindow
	})

	result := &BatchResult{StoreID: storeID}
	now := time.Now()

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			// Cancellation between groups: keep what was already built.
			return result, err
		}

		values := groups[key]
		if len(values) < b.minSampleSize {
			b.logger.Debug("batch group below minimum sample size, skipping",
				zap.String("store_id", storeID),
				zap.String("area", key.Area),
				zap.String("event_type", string(key.EventType)),
				zap.String("time_window", key.TimeWindow),
				zap.Int("samples", len(values)),
				zap.Int("min_sample_size", b.minSampleSize),
			)
			result.Skipped = append(result.Skipped, key)
			continue
		}

		mean, stdDev := BatchStats(values)
		profile := &behavior.BaselineProfile{
			StoreID:    storeID,
			Area:       key.Area,
			EventType:  key.EventType,
			TimeWindow: key.TimeWindow,
			Mean:       mean,
			StdDev:     stdDev,
			Samples:    len(values),
			UpdatedAt:  now,
		}

		if err := b.upsertSerialized(ctx, profile); err != nil {
			result.Failed = append(result.Failed, GroupError{Key: key, Err: err.Error()})
			b.logger.Warn("batch group upsert failed",
				zap.String("store_id", storeID),
				zap.String("area", key.Area),
				zap.String("event_type", string(key.EventType)),
				zap.String("time_window", key.TimeWindow),
				zap.Error(err),
			)
			continue
		}
		result.Built = append(result.Built, key)
	}

	b.logger.Info("batch baseline build complete",
		zap.String("store_id", storeID),
		zap.Int("built", len(result.Built)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// upsertSerialized routes a batch upsert through the same shard worker that
// owns the key's streaming updates, so a batch write can never race a
// streaming write for the same profile.
func (b *BaselineBuilder) upsertSerialized(ctx context.Context, p *behavior.BaselineProfile) error {
	done := make(chan error, 1)
	key := shardKey(p.StoreID, p.Area, string(p.EventType))
	if err := b.pool.Submit(ctx, key, func() {
		done <- b.store.Upsert(ctx, p)
	}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StreamUpdate folds one event into its baseline profile: read, EWMA
// update, write. Must run on the shard worker owning the event's key; the
// plugin arranges that. Returns the profile state prior to the update
// (nil when the event seeded a fresh profile).
func (b *BaselineBuilder) StreamUpdate(ctx context.Context, e *behavior.Event) (*behavior.BaselineProfile, error) {
	window := ClassifyTimeWindow(e.Timestamp)

	prior, err := b.store.Get(ctx, e.StoreID, e.Area, e.Type, window)
	if err != nil {
		return nil, fmt.Errorf("load baseline for streaming update: %w", err)
	}

	seed := prior
	if seed == nil {
		seed = &behavior.BaselineProfile{
			StoreID:    e.StoreID,
			Area:       e.Area,
			EventType:  e.Type,
			TimeWindow: window,
		}
	}

	updated := ApplyStreamingUpdate(seed, behavior.ExtractValue(e), b.alpha, e.Timestamp)
	if err := b.store.Upsert(ctx, &updated); err != nil {
		return nil, fmt.Errorf("persist streaming update: %w", err)
	}
	return prior, nil
}
