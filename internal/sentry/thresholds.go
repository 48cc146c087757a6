package sentry

import (
	"sync/atomic"

	"github.com/AvaQuinn/storesight/pkg/behavior"
)

// DefaultThresholds is the severity ladder applied to areas without an
// override: Z-scores at or above each cutoff classify as that severity.
var DefaultThresholds = behavior.Thresholds{Low: 2.0, Medium: 2.5, High: 3.0, Critical: 3.5}

// builtinAreaShifts tunes naturally noisy and sensitive zones. High-traffic
// areas shift up (fewer false alarms); restricted areas shift down (earlier
// detection). Config overrides replace these per area.
var builtinAreaShifts = map[string]float64{
	"entrance":   0.2,
	"exit":       0.2,
	"restricted": -0.25,
	"high_value": -0.25,
}

// thresholdSnapshot is one immutable version of the area-tuning table.
type thresholdSnapshot struct {
	version  int64
	defaults behavior.Thresholds
	areas    map[string]behavior.Thresholds
}

// ThresholdTable resolves severity thresholds per area. Reads take an atomic
// snapshot, so detection never blocks on a concurrent update; updates swap
// in a fresh snapshot with a bumped version.
type ThresholdTable struct {
	current atomic.Pointer[thresholdSnapshot]
}

// NewThresholdTable builds a table from the default ladder, the built-in
// area shifts, and any configured per-area overrides (which win).
func NewThresholdTable(overrides map[string]behavior.Thresholds) *ThresholdTable {
	areas := make(map[string]behavior.Thresholds, len(builtinAreaShifts)+len(overrides))
	for area, shift := range builtinAreaShifts {
		areas[area] = DefaultThresholds.Shift(shift)
	}
	for area, t := range overrides {
		areas[area] = t
	}

	tbl := &ThresholdTable{}
	tbl.current.Store(&thresholdSnapshot{
		version:  1,
		defaults: DefaultThresholds,
		areas:    areas,
	})
	return tbl
}

// Resolve returns the threshold ladder for an area and the table version it
// came from. Unlisted areas use the defaults.
func (t *ThresholdTable) Resolve(area string) (behavior.Thresholds, int64) {
	snap := t.current.Load()
	if th, ok := snap.areas[area]; ok {
		return th, snap.version
	}
	return snap.defaults, snap.version
}

// Version returns the current table version.
func (t *ThresholdTable) Version() int64 {
	return t.current.Load().version
}

// ThresholdView is a read-only copy of the table for API responses.
type ThresholdView struct {
	Version  int64                          `json:"version"`
	Defaults behavior.Thresholds            `json:"defaults"`
	Areas    map[string]behavior.Thresholds `json:"areas"`
}

// Snapshot returns a copy of the current table state.
func (t *ThresholdTable) Snapshot() ThresholdView {
	snap := t.current.Load()
	areas := make(map[string]behavior.Thresholds, len(snap.areas))
	for k, v := range snap.areas {
		areas[k] = v
	}
	return ThresholdView{Version: snap.version, Defaults: snap.defaults, Areas: areas}
}

// Shift moves one area's ladder by delta and publishes a new snapshot.
// Used by the adaptive threshold learner.
func (t *ThresholdTable) Shift(area string, delta float64) {
	for {
		old := t.current.Load()

		areas := make(map[string]behavior.Thresholds, len(old.areas)+1)
		for k, v := range old.areas {
			areas[k] = v
		}
		base, ok := areas[area]
		if !ok {
			base = old.defaults
		}
		areas[area] = base.Shift(delta)

		next := &thresholdSnapshot{
			version:  old.version + 1,
			defaults: old.defaults,
			areas:    areas,
		}
		if t.current.CompareAndSwap(old, next) {
			return
		}
	}
}

// classifySeverity maps a Z-score onto the ladder. Below Low is "none".
func classifySeverity(zScore float64, th behavior.Thresholds) string {
	switch {
	case zScore >= th.Critical:
		return behavior.SeverityCritical
	case zScore >= th.High:
		return behavior.SeverityHigh
	case zScore >= th.Medium:
		return behavior.SeverityMedium
	case zScore >= th.Low:
		return behavior.SeverityLow
	default:
		return behavior.SeverityNone
	}
}

// anomalyConfidence grades how far past the ladder a Z-score sits,
// clamped to [0.5, 0.95].
func anomalyConfidence(zScore float64, th behavior.Thresholds) float64 {
	span := th.Critical - th.Low
	if span <= 0 {
		return 0.5
	}
	c := (zScore - th.Low) / span
	if c < 0.5 {
		return 0.5
	}
	if c > 0.95 {
		return 0.95
	}
	return c
}
