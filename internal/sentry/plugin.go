// Package sentry implements behavioral baseline learning and anomaly
// detection for retail camera events. Events stream in over the bus or
// HTTP, fold into per-(store, area, event type, time window) EWMA
// baselines, and are scored against those baselines with area-tuned
// Z-score thresholds, hysteresis flap suppression, and feedback-driven
// threshold adaptation.
package sentry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/AvaQuinn/storesight/pkg/behavior"
	"github.com/AvaQuinn/storesight/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.HTTPProvider    = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.Validator       = (*Module)(nil)
)

// RoleDetection marks plugins that produce anomaly decisions.
const RoleDetection = "detection"

// Module implements the sentry detection plugin.
type Module struct {
	logger *zap.Logger
	cfg    SentryConfig
	store  *SentryStore
	bus    plugin.EventBus

	pool       *shardPool
	thresholds *ThresholdTable
	hysteresis *HysteresisTracker
	builder    *BaselineBuilder
	detector   *AnomalyDetector
	learner    *ThresholdLearner
	analyzers  []PatternAnalyzer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new sentry plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "sentry",
		Version:     "0.1.0",
		Description: "Behavioral baselines and anomaly detection for store camera events",
		Roles:       []string{RoleDetection},
		Required:    false,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal sentry config: %w", err)
		}
	}

	m.bus = deps.Bus
	m.pool = newShardPool(m.cfg.Shards, m.cfg.QueueDepth)
	m.thresholds = NewThresholdTable(m.cfg.AreaThresholds)
	m.hysteresis = NewHysteresisTracker(m.cfg.DebounceWindow, m.cfg.Cooldown, m.cfg.HysteresisMaxAge)

	if deps.Store != nil {
		if err := deps.Store.Migrate(context.Background(), "sentry", migrations()); err != nil {
			return fmt.Errorf("sentry migrations: %w", err)
		}
		m.store = NewSentryStore(deps.Store.DB())
		m.builder = NewBaselineBuilder(m.store, m.pool, m.cfg, m.logger)
		m.detector = NewAnomalyDetector(m.store, m.thresholds, m.hysteresis, m.cfg, m.logger)
		m.learner = NewThresholdLearner(m.store, m.thresholds, m.cfg, m.logger)
	}

	m.logger.Info("sentry module initialized",
		zap.Float64("ewma_alpha", m.cfg.EWMAAlpha),
		zap.Int("min_sample_size", m.cfg.MinSampleSize),
		zap.Duration("debounce_window", m.cfg.DebounceWindow),
		zap.Duration("cooldown", m.cfg.Cooldown),
		zap.Int("shards", m.cfg.Shards),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.EWMAAlpha <= 0 || m.cfg.EWMAAlpha >= 1 {
		return fmt.Errorf("ewma_alpha must be in (0, 1), got %v", m.cfg.EWMAAlpha)
	}
	if m.cfg.MinSampleSize < 1 {
		return fmt.Errorf("min_sample_size must be positive, got %d", m.cfg.MinSampleSize)
	}
	for area, th := range m.cfg.AreaThresholds {
		if !(th.Low < th.Medium && th.Medium < th.High && th.High < th.Critical) {
			return fmt.Errorf("area %q thresholds must be strictly increasing", area)
		}
	}
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.done = make(chan struct{})
	go m.maintenanceLoop()
	m.logger.Info("sentry module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	if m.pool != nil {
		m.pool.Close()
	}
	m.logger.Info("sentry module stopped")
	return nil
}

// RegisterAnalyzer adds a pattern analyzer to the detection pipeline.
// Must be called before Start.
func (m *Module) RegisterAnalyzer(a PatternAnalyzer) {
	m.analyzers = append(m.analyzers, a)
}

// -- plugin.HealthChecker --

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	details := map[string]string{}
	if m.hysteresis != nil {
		details["hysteresis_keys"] = strconv.Itoa(m.hysteresis.Len())
	}
	if m.pool != nil {
		details["queued_tasks"] = strconv.Itoa(m.pool.QueueDepth())
	}
	if m.thresholds != nil {
		details["threshold_version"] = strconv.FormatInt(m.thresholds.Version(), 10)
	}
	return plugin.HealthStatus{Status: "healthy", Details: details}
}

// -- plugin.EventSubscriber --

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: TopicBehaviorIngested, Handler: m.handleBehaviorIngested},
	}
}

// handleBehaviorIngested is the bus entry point of the detection pipeline.
func (m *Module) handleBehaviorIngested(_ context.Context, event plugin.Event) {
	e, ok := event.Payload.(*behavior.Event)
	if !ok {
		m.logger.Debug("ignored behavior event: unexpected payload type",
			zap.String("source", event.Source))
		return
	}
	ctx := m.ctx
	if ctx == nil {
		// Subscriptions are wired before Start.
		ctx = context.Background()
	}
	if _, err := m.Process(ctx, e); err != nil {
		m.logger.Warn("behavior event processing failed",
			zap.String("event_id", e.ID),
			zap.Error(err))
	}
}

// Process runs one behavior event through the full pipeline: persist,
// update the baseline, score against the pre-update baseline, record and
// publish any anomaly. The baseline update and scoring run on the shard
// worker owning the event's key, so concurrent events for one entity are
// processed in submission order.
//
// Returns nil when the event is clean or not yet evaluable.
func (m *Module) Process(ctx context.Context, e *behavior.Event) (*behavior.AnomalyEvent, error) {
	if m.store == nil {
		return nil, fmt.Errorf("sentry store not configured")
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	eventsProcessedTotal.Inc()

	if err := m.store.InsertEvent(ctx, e); err != nil {
		return nil, err
	}

	type outcome struct {
		decision *behavior.AnomalyEvent
		err      error
	}
	out := make(chan outcome, 1)

	key := shardKey(e.StoreID, e.Area, string(e.Type))
	if err := m.pool.Submit(ctx, key, func() {
		prior, err := m.builder.StreamUpdate(ctx, e)
		if err != nil {
			out <- outcome{err: err}
			return
		}
		decision := m.detector.EvaluateAgainst(e, prior, time.Now())
		if decision == nil || !decision.IsAnomaly {
			decision = m.runAnalyzers(ctx, e, prior, decision)
		}
		out <- outcome{decision: decision}
	}); err != nil {
		return nil, err
	}

	var res outcome
	select {
	case res = <-out:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	decision := res.decision
	if decision == nil || !decision.IsAnomaly {
		return nil, nil
	}

	anomaliesTotal.WithLabelValues(decision.Severity).Inc()
	if decision.Suppressed {
		suppressedTotal.Inc()
	}

	if err := m.store.InsertAnomaly(ctx, decision); err != nil {
		return nil, fmt.Errorf("persist anomaly: %w", err)
	}

	m.logger.Info("anomaly detected",
		zap.String("store_id", decision.StoreID),
		zap.String("area", decision.Area),
		zap.String("event_type", string(decision.EventType)),
		zap.String("severity", decision.Severity),
		zap.Float64("z_score", decision.ZScore),
		zap.Bool("suppressed", decision.Suppressed),
	)

	if m.bus != nil {
		m.bus.PublishAsync(ctx, plugin.Event{
			Topic:     TopicAnomalyDetected,
			Source:    "sentry",
			Timestamp: decision.DetectedAt,
			Payload:   decision,
		})
	}
	return decision, nil
}

// runAnalyzers offers the event to registered pattern analyzers when the
// Z-score core did not flag it. The first analyzer to return a decision
// wins; analyzer errors are logged and skipped.
func (m *Module) runAnalyzers(ctx context.Context, e *behavior.Event, profile *behavior.BaselineProfile, fallback *behavior.AnomalyEvent) *behavior.AnomalyEvent {
	for _, a := range m.analyzers {
		decision, err := a.Analyze(ctx, e, profile)
		if err != nil {
			m.logger.Warn("pattern analyzer failed",
				zap.String("analyzer", a.Name()),
				zap.Error(err))
			continue
		}
		if decision != nil && decision.IsAnomaly {
			return decision
		}
	}
	return fallback
}

// RebuildBaselines runs a batch baseline build for one store and publishes
// the result.
func (m *Module) RebuildBaselines(ctx context.Context, storeID string, opts BatchOptions) (*BatchResult, error) {
	if m.builder == nil {
		return nil, fmt.Errorf("sentry store not configured")
	}
	result, err := m.builder.BuildBatch(ctx, storeID, opts)
	if err != nil {
		return result, err
	}
	if m.bus != nil {
		m.bus.PublishAsync(ctx, plugin.Event{
			Topic:     TopicBaselineRebuilt,
			Source:    "sentry",
			Timestamp: time.Now(),
			Payload:   result,
		})
	}
	return result, nil
}

// SubmitFeedback applies one reviewer label to the adaptive threshold
// learner and publishes the adjustment if one was made.
func (m *Module) SubmitFeedback(ctx context.Context, fb behavior.Feedback) (*ThresholdAdjustment, error) {
	if m.learner == nil {
		return nil, fmt.Errorf("sentry store not configured")
	}
	adj, err := m.learner.Learn(ctx, fb)
	if err != nil {
		return nil, err
	}
	if adj != nil && m.bus != nil {
		m.bus.PublishAsync(ctx, plugin.Event{
			Topic:     TopicThresholdUpdated,
			Source:    "sentry",
			Timestamp: adj.AppliedAt,
			Payload:   adj,
		})
	}
	return adj, nil
}
