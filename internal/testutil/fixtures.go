// Package testutil provides shared test fixtures.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/AvaQuinn/storesight/pkg/behavior"
)

// NewEvent returns a behavior Event with sensible defaults, suitable for
// test fixtures. Override fields using the With* option functions.
func NewEvent(opts ...func(*behavior.Event)) behavior.Event {
	e := behavior.Event{
		ID:           uuid.New().String(),
		StoreID:      "store-1",
		CameraID:     "cam-1",
		Area:         "electronics",
		Type:         behavior.EventLoitering,
		Confidence:   0.9,
		DurationSecs: 45,
		Timestamp:    time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// WithStore sets the store ID.
func WithStore(id string) func(*behavior.Event) {
	return func(e *behavior.Event) { e.StoreID = id }
}

// WithCamera sets the camera ID.
func WithCamera(id string) func(*behavior.Event) {
	return func(e *behavior.Event) { e.CameraID = id }
}

// WithArea sets the area name.
func WithArea(area string) func(*behavior.Event) {
	return func(e *behavior.Event) { e.Area = area }
}

// WithType sets the event type.
func WithType(t behavior.EventType) func(*behavior.Event) {
	return func(e *behavior.Event) { e.Type = t }
}

// WithDuration sets the loitering or dwell duration in seconds.
func WithDuration(secs float64) func(*behavior.Event) {
	return func(e *behavior.Event) { e.DurationSecs = secs }
}

// WithPersonCount sets the detected person count.
func WithPersonCount(n float64) func(*behavior.Event) {
	return func(e *behavior.Event) { e.PersonCount = n }
}

// WithMotionIntensity sets the motion intensity score.
func WithMotionIntensity(v float64) func(*behavior.Event) {
	return func(e *behavior.Event) { e.MotionIntensity = v }
}

// WithTimestamp sets the event timestamp.
func WithTimestamp(t time.Time) func(*behavior.Event) {
	return func(e *behavior.Event) { e.Timestamp = t }
}

// NewProfile returns a trusted baseline profile matching NewEvent's key.
func NewProfile(mean, stdDev float64, opts ...func(*behavior.BaselineProfile)) behavior.BaselineProfile {
	p := behavior.BaselineProfile{
		StoreID:    "store-1",
		Area:       "electronics",
		EventType:  behavior.EventLoitering,
		TimeWindow: "hour_14_weekday",
		Mean:       mean,
		StdDev:     stdDev,
		Samples:    100,
		UpdatedAt:  time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithSamples sets the profile's sample count.
func WithSamples(n int) func(*behavior.BaselineProfile) {
	return func(p *behavior.BaselineProfile) { p.Samples = n }
}

// WithWindow sets the profile's time window.
func WithWindow(w string) func(*behavior.BaselineProfile) {
	return func(p *behavior.BaselineProfile) { p.TimeWindow = w }
}
