// Package behavior provides public SDK types for the StoreSight behavioral
// analytics system: camera behavior events, learned baselines, and anomaly
// decisions. These types are shared between the ingestion boundary, the
// sentry detection plugin, and downstream notification consumers.
package behavior

import (
	"fmt"
	"time"
)

// EventType identifies the class of observed behavior.
type EventType string

// Supported behavior event types.
const (
	EventLoitering    EventType = "loitering"
	EventCrowdDensity EventType = "crowd_density"
	EventMotionSpike  EventType = "motion_spike"
	EventDwellTime    EventType = "dwell_time"
	EventOther        EventType = "other"
)

// Valid reports whether t is one of the supported event types.
func (t EventType) Valid() bool {
	switch t {
	case EventLoitering, EventCrowdDensity, EventMotionSpike, EventDwellTime, EventOther:
		return true
	}
	return false
}

// Severity levels for anomaly decisions, ordered weakest to strongest.
const (
	SeverityNone     = "none"
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Event is one observed behavior occurrence at a camera. Events are created
// by the external detection pipeline and are immutable once ingested.
type Event struct {
	ID              string    `json:"id,omitempty"`
	StoreID         string    `json:"store_id"`
	CameraID        string    `json:"camera_id"`
	Area            string    `json:"area"` // Free-text zone name: "entrance", "checkout", ...
	Type            EventType `json:"event_type"`
	Confidence      float64   `json:"confidence"` // Detection confidence, 0-1
	DurationSecs    float64   `json:"duration_secs,omitempty"`
	PersonCount     float64   `json:"person_count,omitempty"`
	MotionIntensity float64   `json:"motion_intensity,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Validate rejects malformed events at the ingestion boundary.
// A rejected event is never partially processed.
func (e *Event) Validate() error {
	if e.StoreID == "" {
		return fmt.Errorf("behavior event missing store_id")
	}
	if e.CameraID == "" {
		return fmt.Errorf("behavior event missing camera_id")
	}
	if e.Area == "" {
		return fmt.Errorf("behavior event missing area")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("behavior event has unknown event_type %q", e.Type)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("behavior event confidence %.3f outside [0,1]", e.Confidence)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("behavior event missing timestamp")
	}
	return nil
}

// ExtractValue returns the scalar used for baseline statistics and anomaly
// scoring. The mapping is fixed per event type and must be identical on the
// batch and streaming paths, or the two statistics diverge:
// loitering and dwell_time use the duration, crowd_density the person count,
// motion_spike the motion intensity, and anything else falls back to the
// detection confidence.
func ExtractValue(e *Event) float64 {
	switch e.Type {
	case EventLoitering, EventDwellTime:
		return e.DurationSecs
	case EventCrowdDensity:
		return e.PersonCount
	case EventMotionSpike:
		return e.MotionIntensity
	default:
		return e.Confidence
	}
}

// BaselineProfile is the learned statistical summary for one
// (store, area, event type, time window) tuple.
// StdDev is floored at MinStdDev; Samples never decreases under streaming updates.
type BaselineProfile struct {
	StoreID    string    `json:"store_id"`
	Area       string    `json:"area"`
	EventType  EventType `json:"event_type"`
	TimeWindow string    `json:"time_window"` // "hour_14_weekday"
	Mean       float64   `json:"mean"`
	StdDev     float64   `json:"std_dev"`
	Samples    int       `json:"samples"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MinStdDev is the floor applied to every stored standard deviation so the
// Z-score division is always defined. Applied identically on batch and
// streaming paths.
const MinStdDev = 0.01

// AnomalyEvent is the outcome of evaluating one behavior event against its
// baseline. Created once per evaluation and immutable; persisted only when
// IsAnomaly is true.
type AnomalyEvent struct {
	ID                 string    `json:"id"`
	EventID            string    `json:"event_id"`
	StoreID            string    `json:"store_id"`
	CameraID           string    `json:"camera_id"`
	Area               string    `json:"area"`
	EventType          EventType `json:"event_type"`
	Severity           string    `json:"severity"`
	IsAnomaly          bool      `json:"is_anomaly"`
	Suppressed         bool      `json:"suppressed"` // Hysteresis downgraded the alert
	ZScore             float64   `json:"z_score"`    // Deviation magnitude in sigmas
	Value              float64   `json:"value"`      // Observed scalar
	Expected           float64   `json:"expected"`   // Baseline mean
	Confidence         float64   `json:"confidence"` // 0.5-0.95
	Description        string    `json:"description"`
	RecommendedActions []string  `json:"recommended_actions"`
	AlertGenerated     bool      `json:"alert_generated"` // true for unsuppressed high/critical
	DetectedAt         time.Time `json:"detected_at"`
}

// Thresholds is one severity ladder of Z-score cutoffs.
type Thresholds struct {
	Low      float64 `json:"low" mapstructure:"low"`
	Medium   float64 `json:"medium" mapstructure:"medium"`
	High     float64 `json:"high" mapstructure:"high"`
	Critical float64 `json:"critical" mapstructure:"critical"`
}

// Shift returns a copy with all four cutoffs moved by delta.
func (t Thresholds) Shift(delta float64) Thresholds {
	return Thresholds{
		Low:      t.Low + delta,
		Medium:   t.Medium + delta,
		High:     t.High + delta,
		Critical: t.Critical + delta,
	}
}

// Feedback labels for confirmed anomaly outcomes.
const (
	LabelTruePositive  = "true_positive"
	LabelFalsePositive = "false_positive"
)

// Feedback is a confirmed label for a past anomaly event, consumed by the
// adaptive threshold learner.
type Feedback struct {
	AnomalyID  string  `json:"anomaly_id"`
	Area       string  `json:"area"`
	Label      string  `json:"label"`      // "true_positive" or "false_positive"
	Confidence float64 `json:"confidence"` // Confidence of the original anomaly decision
}

// Validate checks the feedback label and references.
func (f *Feedback) Validate() error {
	if f.AnomalyID == "" {
		return fmt.Errorf("feedback missing anomaly_id")
	}
	if f.Label != LabelTruePositive && f.Label != LabelFalsePositive {
		return fmt.Errorf("feedback has unknown label %q", f.Label)
	}
	return nil
}
