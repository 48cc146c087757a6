package sentry

import (
	"time"

	"github.com/AvaQuinn/storesight/pkg/behavior"
)

// SentryConfig holds configuration for the sentry detection plugin.
// Every tunable that shapes a detection decision lives here rather than in
// code: EWMA decay, batch gating, hysteresis windows, retention, and the
// per-area threshold overrides.
type SentryConfig struct {
	EWMAAlpha           float64       `mapstructure:"ewma_alpha"`
	MinSampleSize       int           `mapstructure:"min_sample_size"`
	BatchMaxAge         time.Duration `mapstructure:"batch_max_age"`
	DebounceWindow      time.Duration `mapstructure:"debounce_window"`
	Cooldown            time.Duration `mapstructure:"cooldown"`
	HysteresisMaxAge    time.Duration `mapstructure:"hysteresis_max_age"`
	BaselineRetention   time.Duration `mapstructure:"baseline_retention"`
	AnomalyRetention    time.Duration `mapstructure:"anomaly_retention"`
	EventRetention      time.Duration `mapstructure:"event_retention"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
	Shards              int           `mapstructure:"shards"`
	QueueDepth          int           `mapstructure:"queue_depth"`

	// AreaThresholds overrides the severity ladder per area name.
	AreaThresholds map[string]behavior.Thresholds `mapstructure:"area_thresholds"`

	// Adaptive threshold learning.
	LearningRate             float64 `mapstructure:"learning_rate"`
	MaxAdjustment            float64 `mapstructure:"max_adjustment"`
	MinConfidenceForLearning float64 `mapstructure:"min_confidence_for_learning"`
	FalsePositiveWeight      float64 `mapstructure:"false_positive_weight"`
}

// DefaultConfig returns sensible defaults for the sentry plugin.
// EWMA alpha 0.2 is a conservative choice favoring stability over fast
// adaptation; 20 samples gate a baseline before it is trusted.
func DefaultConfig() SentryConfig {
	return SentryConfig{
		EWMAAlpha:           0.2,
		MinSampleSize:       20,
		BatchMaxAge:         30 * 24 * time.Hour,
		DebounceWindow:      60 * time.Second,
		Cooldown:            120 * time.Second,
		HysteresisMaxAge:    1 * time.Hour,
		BaselineRetention:   60 * 24 * time.Hour,
		AnomalyRetention:    30 * 24 * time.Hour,
		EventRetention:      60 * 24 * time.Hour,
		MaintenanceInterval: 1 * time.Hour,
		Shards:              16,
		QueueDepth:          256,

		LearningRate:             0.1,
		MaxAdjustment:            0.3,
		MinConfidenceForLearning: 0.7,
		FalsePositiveWeight:      1.0,
	}
}
