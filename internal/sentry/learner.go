package sentry

import (
	"context"
	"fmt"
	"time"

	"github.com/AvaQuinn/storesight/pkg/behavior"
	"go.uber.org/zap"
)

// ThresholdAdjustment is one applied threshold change, recorded for audit.
type ThresholdAdjustment struct {
	AnomalyID    string    `json:"anomaly_id"`
	Area         string    `json:"area"`
	Label        string    `json:"label"`
	Confidence   float64   `json:"confidence"`
	Delta        float64   `json:"delta"` // Signed shift applied to the area's ladder
	TableVersion int64     `json:"table_version"`
	AppliedAt    time.Time `json:"applied_at"`
}

// ThresholdLearner nudges per-area thresholds from confirmed anomaly labels.
// False positives push an area's ladder up (less sensitive); true positives
// pull it down by a tenth of the same magnitude (slightly more sensitive).
// Adjustments apply to the live threshold table and are persisted for audit.
type ThresholdLearner struct {
	store  *SentryStore
	table  *ThresholdTable
	logger *zap.Logger

	rate          float64
	maxAdjustment float64
	minConfidence float64
	fpWeight      float64
}

// NewThresholdLearner creates a learner operating on the shared table.
func NewThresholdLearner(store *SentryStore, table *ThresholdTable, cfg SentryConfig, logger *zap.Logger) *ThresholdLearner {
	return &ThresholdLearner{
		store:         store,
		table:         table,
		logger:        logger,
		rate:          cfg.LearningRate,
		maxAdjustment: cfg.MaxAdjustment,
		minConfidence: cfg.MinConfidenceForLearning,
		fpWeight:      cfg.FalsePositiveWeight,
	}
}

// Learn processes one confirmed label. Labels for low-confidence decisions
// are ignored (returned as a nil adjustment, not an error): a reviewer
// overruling a marginal call carries little signal.
func (l *ThresholdLearner) Learn(ctx context.Context, fb behavior.Feedback) (*ThresholdAdjustment, error) {
	if err := fb.Validate(); err != nil {
		return nil, err
	}

	anomaly, err := l.store.GetAnomaly(ctx, fb.AnomalyID)
	if err != nil {
		return nil, err
	}
	if anomaly == nil {
		return nil, fmt.Errorf("feedback references unknown anomaly %q", fb.AnomalyID)
	}

	if anomaly.Confidence < l.minConfidence {
		l.logger.Debug("feedback below learning confidence floor, ignored",
			zap.String("anomaly_id", fb.AnomalyID),
			zap.Float64("confidence", anomaly.Confidence),
			zap.Float64("min_confidence", l.minConfidence),
		)
		return nil, nil
	}

	adjustment := l.rate * anomaly.Confidence
	if adjustment > l.maxAdjustment {
		adjustment = l.maxAdjustment
	}

	var delta float64
	switch fb.Label {
	case behavior.LabelFalsePositive:
		delta = adjustment * l.fpWeight
	case behavior.LabelTruePositive:
		delta = -0.1 * adjustment
	}

	l.table.Shift(anomaly.Area, delta)

	adj := &ThresholdAdjustment{
		AnomalyID:    anomaly.ID,
		Area:         anomaly.Area,
		Label:        fb.Label,
		Confidence:   anomaly.Confidence,
		Delta:        delta,
		TableVersion: l.table.Version(),
		AppliedAt:    time.Now(),
	}
	if err := l.store.InsertAdjustment(ctx, adj); err != nil {
		return nil, err
	}

	l.logger.Info("area thresholds adjusted from feedback",
		zap.String("area", adj.Area),
		zap.String("label", adj.Label),
		zap.Float64("delta", adj.Delta),
		zap.Int64("table_version", adj.TableVersion),
	)
	return adj, nil
}
