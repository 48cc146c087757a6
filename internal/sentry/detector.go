package sentry

import (
	"context"
	"math"
	"time"

	"github.com/AvaQuinn/storesight/pkg/behavior"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnomalyDetector classifies one behavior event at a time against its
// learned baseline: Z-score, area-tuned severity, hysteresis, and a
// human-readable decision.
type AnomalyDetector struct {
	baselines  BaselineStore
	thresholds *ThresholdTable
	hysteresis *HysteresisTracker
	logger     *zap.Logger

	minSampleSize int
}

// NewAnomalyDetector creates a detector. The threshold table and hysteresis
// tracker are shared with the learner and the maintenance loop.
func NewAnomalyDetector(baselines BaselineStore, thresholds *ThresholdTable, hysteresis *HysteresisTracker, cfg SentryConfig, logger *zap.Logger) *AnomalyDetector {
	return &AnomalyDetector{
		baselines:     baselines,
		thresholds:    thresholds,
		hysteresis:    hysteresis,
		logger:        logger,
		minSampleSize: cfg.MinSampleSize,
	}
}

// Evaluate fetches the event's baseline and classifies it.
// A missing baseline is a normal skip, returned as (nil, nil).
func (d *AnomalyDetector) Evaluate(ctx context.Context, e *behavior.Event) (*behavior.AnomalyEvent, error) {
	window := ClassifyTimeWindow(e.Timestamp)
	profile, err := d.baselines.Get(ctx, e.StoreID, e.Area, e.Type, window)
	if err != nil {
		return nil, err
	}
	return d.EvaluateAgainst(e, profile, time.Now()), nil
}

// EvaluateAgainst classifies an event against an already-loaded profile.
// The streaming pipeline passes the profile state prior to the event's own
// EWMA update, so an event is never scored against a baseline it has
// already influenced.
//
// Returns nil when no trusted baseline exists for the key: not an anomaly,
// not an error, just not evaluable yet.
func (d *AnomalyDetector) EvaluateAgainst(e *behavior.Event, profile *behavior.BaselineProfile, now time.Time) *behavior.AnomalyEvent {
	if profile == nil || profile.Samples < d.minSampleSize {
		samples := 0
		if profile != nil {
			samples = profile.Samples
		}
		d.logger.Debug("no trusted baseline for event, skipping evaluation",
			zap.String("store_id", e.StoreID),
			zap.String("area", e.Area),
			zap.String("event_type", string(e.Type)),
			zap.Int("samples", samples),
		)
		return nil
	}

	value := behavior.ExtractValue(e)
	zScore := math.Abs(value-profile.Mean) / profile.StdDev

	th, _ := d.thresholds.Resolve(e.Area)
	severity := classifySeverity(zScore, th)

	decision := &behavior.AnomalyEvent{
		ID:         uuid.NewString(),
		EventID:    e.ID,
		StoreID:    e.StoreID,
		CameraID:   e.CameraID,
		Area:       e.Area,
		EventType:  e.Type,
		Severity:   severity,
		ZScore:     zScore,
		Value:      value,
		Expected:   profile.Mean,
		DetectedAt: now,
	}

	isAnomaly := severity != behavior.SeverityNone
	suppressed := d.hysteresis.Observe(e.CameraID, string(e.Type), isAnomaly, now)

	if !isAnomaly {
		return decision
	}

	decision.IsAnomaly = true
	decision.Suppressed = suppressed
	decision.Confidence = anomalyConfidence(zScore, th)
	decision.Description = describeAnomaly(e, severity, value, profile.Mean, zScore)
	decision.RecommendedActions = actionsFor(e.Type, severity)
	decision.AlertGenerated = !suppressed &&
		(severity == behavior.SeverityHigh || severity == behavior.SeverityCritical)
	return decision
}
