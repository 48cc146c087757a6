package sentry

import (
	"container/heap"
	"sync"
	"time"
)

// HysteresisTracker debounces oscillating anomaly decisions per
// (camera, event type) key. Each key is a two-state machine: Normal, or
// Suppressed-until-T after a flap (anomaly, briefly normal, anomaly again
// within the debounce window). A suppressed anomaly keeps its severity for
// audit but must not generate an alert.
//
// State is in-memory only; a process restart legitimately resets it, and a
// missing entry is equivalent to Normal. Entries idle past maxAge are
// evicted by Sweep, which the plugin's maintenance loop calls on a timer.
type HysteresisTracker struct {
	mu      sync.Mutex
	entries map[string]*hysteresisEntry
	expiry  expiryHeap // Lazy min-heap of touch records for eviction

	debounce time.Duration
	cooldown time.Duration
	maxAge   time.Duration
}

type hysteresisEntry struct {
	lastAnomaly   time.Time
	suppressUntil time.Time
	lastSeen      time.Time
}

// touchRecord marks one observation of a key. Records are never removed on
// touch; Sweep discards stale ones lazily, so the heap stays bounded by the
// number of observations between sweeps.
type touchRecord struct {
	key string
	at  time.Time
}

type expiryHeap []touchRecord

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h expiryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x any)         { *h = append(*h, x.(touchRecord)) }
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	rec := old[n-1]
	*h = old[:n-1]
	return rec
}

// NewHysteresisTracker creates a tracker with the given debounce window,
// suppression cooldown, and idle eviction age.
func NewHysteresisTracker(debounce, cooldown, maxAge time.Duration) *HysteresisTracker {
	return &HysteresisTracker{
		entries:  make(map[string]*hysteresisEntry),
		debounce: debounce,
		cooldown: cooldown,
		maxAge:   maxAge,
	}
}

// hysteresisKey builds the tracker key for a camera and event type.
func hysteresisKey(cameraID, eventType string) string {
	return cameraID + ":" + eventType
}

// Observe feeds one raw decision through the state machine and reports
// whether an anomalous decision must be suppressed.
//
// Raw anomaly: suppressed while inside an active cooldown; otherwise passes
// through, records the anomaly time, and clears any suppression.
// Raw non-anomaly: arriving within the debounce window of the last anomaly,
// it arms suppression for the cooldown period, so the incident is treated
// as one continuous episode rather than a burst of separate alerts.
func (t *HysteresisTracker) Observe(cameraID string, eventType string, isAnomaly bool, now time.Time) (suppressed bool) {
	key := hysteresisKey(cameraID, eventType)

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]

	if isAnomaly {
		if !ok {
			e = &hysteresisEntry{}
			t.entries[key] = e
		}
		e.lastSeen = now
		heap.Push(&t.expiry, touchRecord{key: key, at: now})

		if !e.suppressUntil.IsZero() && now.Before(e.suppressUntil) {
			return true
		}

		e.lastAnomaly = now
		e.suppressUntil = time.Time{}
		return false
	}

	// Non-anomaly: only relevant if the key has recent anomaly history.
	if !ok {
		return false
	}
	e.lastSeen = now
	heap.Push(&t.expiry, touchRecord{key: key, at: now})

	if !e.lastAnomaly.IsZero() && now.Sub(e.lastAnomaly) < t.debounce {
		e.suppressUntil = now.Add(t.cooldown)
	}
	return false
}

// Sweep evicts entries idle longer than maxAge. Safe to call at any time;
// eviction only resets a key to Normal.
func (t *HysteresisTracker) Sweep(now time.Time) (evicted int) {
	cutoff := now.Add(-t.maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()

	for t.expiry.Len() > 0 {
		rec := t.expiry[0]
		if rec.at.After(cutoff) {
			break
		}
		heap.Pop(&t.expiry)

		e, ok := t.entries[rec.key]
		if !ok {
			continue // Already evicted via an older record
		}
		// A later touch supersedes this record; its own record is still queued.
		if e.lastSeen.After(cutoff) {
			continue
		}
		delete(t.entries, rec.key)
		evicted++
	}
	return evicted
}

// Len returns the number of tracked keys.
func (t *HysteresisTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
