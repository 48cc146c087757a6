package sentry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AvaQuinn/storesight/pkg/behavior"
)

// BaselineStore abstracts persisted baseline profiles, keyed by
// (store, area, event type, time window). Get returns (nil, nil) when no
// profile exists for the key: an evaluable absence, not an error.
type BaselineStore interface {
	Get(ctx context.Context, storeID, area string, eventType behavior.EventType, timeWindow string) (*behavior.BaselineProfile, error)
	Upsert(ctx context.Context, p *behavior.BaselineProfile) error
	ListByStore(ctx context.Context, storeID string) ([]behavior.BaselineProfile, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Compile-time interface guard.
var _ BaselineStore = (*SentryStore)(nil)

// SentryStore provides database access for the sentry plugin: ingested
// behavior events, baseline profiles, anomaly events, and threshold
// adjustment audit records.
type SentryStore struct {
	db *sql.DB
}

// NewSentryStore creates a SentryStore backed by the given database.
func NewSentryStore(db *sql.DB) *SentryStore {
	return &SentryStore{db: db}
}

// -- Behavior events --

// InsertEvent stores one ingested behavior event for later batch rebuilds.
func (s *SentryStore) InsertEvent(ctx context.Context, e *behavior.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sentry_events (
			id, store_id, camera_id, area, event_type, confidence,
			duration_secs, person_count, motion_intensity, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StoreID, e.CameraID, e.Area, string(e.Type), e.Confidence,
		e.DurationSecs, e.PersonCount, e.MotionIntensity, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert behavior event: %w", err)
	}
	return nil
}

// EventFilter narrows ListEvents. Zero values mean "no filter".
type EventFilter struct {
	Area      string
	EventType behavior.EventType
	Since     time.Time
}

// ListEvents returns a store's behavior events matching the filter, oldest first.
func (s *SentryStore) ListEvents(ctx context.Context, storeID string, f EventFilter) ([]behavior.Event, error) {
	query := `
		SELECT id, store_id, camera_id, area, event_type, confidence,
			duration_secs, person_count, motion_intensity, timestamp
		FROM sentry_events WHERE store_id = ?`
	args := []any{storeID}

	if f.Area != "" {
		query += " AND area = ?"
		args = append(args, f.Area)
	}
	if f.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, string(f.EventType))
	}
	if !f.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, f.Since)
	}
	query += " ORDER BY timestamp"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list behavior events: %w", err)
	}
	defer rows.Close()

	var events []behavior.Event
	for rows.Next() {
		var e behavior.Event
		var et string
		if err := rows.Scan(
			&e.ID, &e.StoreID, &e.CameraID, &e.Area, &et, &e.Confidence,
			&e.DurationSecs, &e.PersonCount, &e.MotionIntensity, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan behavior event row: %w", err)
		}
		e.Type = behavior.EventType(et)
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteEventsBefore deletes behavior events older than the given time.
// Returns the number of rows deleted.
func (s *SentryStore) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sentry_events WHERE timestamp < ?`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old behavior events: %w", err)
	}
	return result.RowsAffected()
}

// -- Baseline profiles --

// Get returns the baseline profile for a key, or (nil, nil) if none exists.
func (s *SentryStore) Get(ctx context.Context, storeID, area string, eventType behavior.EventType, timeWindow string) (*behavior.BaselineProfile, error) {
	var p behavior.BaselineProfile
	var et string
	err := s.db.QueryRowContext(ctx, `
		SELECT store_id, area, event_type, time_window, mean, std_dev, samples, updated_at
		FROM sentry_baselines
		WHERE store_id = ? AND area = ? AND event_type = ? AND time_window = ?`,
		storeID, area, string(eventType), timeWindow,
	).Scan(&p.StoreID, &p.Area, &et, &p.TimeWindow, &p.Mean, &p.StdDev, &p.Samples, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get baseline: %w", err)
	}
	p.EventType = behavior.EventType(et)
	return &p, nil
}

// Upsert inserts or replaces a baseline profile.
func (s *SentryStore) Upsert(ctx context.Context, p *behavior.BaselineProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sentry_baselines (
			store_id, area, event_type, time_window, mean, std_dev, samples, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.StoreID, p.Area, string(p.EventType), p.TimeWindow,
		p.Mean, p.StdDev, p.Samples, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert baseline: %w", err)
	}
	return nil
}

// ListByStore returns all baseline profiles for a store, ordered by key.
func (s *SentryStore) ListByStore(ctx context.Context, storeID string) ([]behavior.BaselineProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT store_id, area, event_type, time_window, mean, std_dev, samples, updated_at
		FROM sentry_baselines WHERE store_id = ?
		ORDER BY area, event_type, time_window`,
		storeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	defer rows.Close()

	var profiles []behavior.BaselineProfile
	for rows.Next() {
		var p behavior.BaselineProfile
		var et string
		if err := rows.Scan(
			&p.StoreID, &p.Area, &et, &p.TimeWindow,
			&p.Mean, &p.StdDev, &p.Samples, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan baseline row: %w", err)
		}
		p.EventType = behavior.EventType(et)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// DeleteOlderThan purges baseline profiles not updated since the cutoff.
// Returns the number of rows deleted.
func (s *SentryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sentry_baselines WHERE updated_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale baselines: %w", err)
	}
	return result.RowsAffected()
}

// -- Anomaly events --

// InsertAnomaly stores one anomaly decision. Only anomalous decisions are
// persisted; clean evaluations leave no record.
func (s *SentryStore) InsertAnomaly(ctx context.Context, a *behavior.AnomalyEvent) error {
	actionsJSON, err := json.Marshal(a.RecommendedActions)
	if err != nil {
		return fmt.Errorf("marshal recommended actions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sentry_anomalies (
			id, event_id, store_id, camera_id, area, event_type, severity,
			suppressed, z_score, value, expected, confidence, description,
			recommended_actions, alert_generated, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EventID, a.StoreID, a.CameraID, a.Area, string(a.EventType),
		a.Severity, boolToInt(a.Suppressed), a.ZScore, a.Value, a.Expected,
		a.Confidence, a.Description, string(actionsJSON),
		boolToInt(a.AlertGenerated), a.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert anomaly: %w", err)
	}
	return nil
}

// GetAnomaly returns one anomaly by ID, or (nil, nil) if absent.
func (s *SentryStore) GetAnomaly(ctx context.Context, id string) (*behavior.AnomalyEvent, error) {
	rows, err := s.db.QueryContext(ctx, anomalySelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get anomaly: %w", err)
	}
	defer rows.Close()

	anomalies, err := scanAnomalies(rows)
	if err != nil {
		return nil, err
	}
	if len(anomalies) == 0 {
		return nil, nil
	}
	return &anomalies[0], nil
}

// ListAnomalies returns anomalies, optionally filtered by store.
// Pass empty storeID to list all. Results are ordered by detected_at descending.
func (s *SentryStore) ListAnomalies(ctx context.Context, storeID string, limit int) ([]behavior.AnomalyEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if storeID == "" {
		rows, err = s.db.QueryContext(ctx,
			anomalySelect+` ORDER BY detected_at DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			anomalySelect+` WHERE store_id = ? ORDER BY detected_at DESC LIMIT ?`, storeID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	defer rows.Close()

	return scanAnomalies(rows)
}

// DeleteAnomaliesBefore deletes anomalies detected before the given time.
// Returns the number of rows deleted.
func (s *SentryStore) DeleteAnomaliesBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sentry_anomalies WHERE detected_at < ?`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old anomalies: %w", err)
	}
	return result.RowsAffected()
}

const anomalySelect = `
	SELECT id, event_id, store_id, camera_id, area, event_type, severity,
		suppressed, z_score, value, expected, confidence, description,
		recommended_actions, alert_generated, detected_at
	FROM sentry_anomalies`

func scanAnomalies(rows *sql.Rows) ([]behavior.AnomalyEvent, error) {
	var anomalies []behavior.AnomalyEvent
	for rows.Next() {
		var a behavior.AnomalyEvent
		var et, actionsJSON string
		var suppressed, alertGenerated int
		if err := rows.Scan(
			&a.ID, &a.EventID, &a.StoreID, &a.CameraID, &a.Area, &et, &a.Severity,
			&suppressed, &a.ZScore, &a.Value, &a.Expected, &a.Confidence,
			&a.Description, &actionsJSON, &alertGenerated, &a.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan anomaly row: %w", err)
		}
		a.EventType = behavior.EventType(et)
		a.IsAnomaly = true
		a.Suppressed = suppressed != 0
		a.AlertGenerated = alertGenerated != 0
		if err := json.Unmarshal([]byte(actionsJSON), &a.RecommendedActions); err != nil {
			return nil, fmt.Errorf("unmarshal recommended actions: %w", err)
		}
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}

// -- Threshold adjustments --

// InsertAdjustment records one applied threshold adjustment for audit.
func (s *SentryStore) InsertAdjustment(ctx context.Context, adj *ThresholdAdjustment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sentry_threshold_adjustments (
			anomaly_id, area, label, confidence, delta, table_version, applied_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		adj.AnomalyID, adj.Area, adj.Label, adj.Confidence,
		adj.Delta, adj.TableVersion, adj.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("insert threshold adjustment: %w", err)
	}
	return nil
}

// ListAdjustments returns the most recent threshold adjustments for an area.
func (s *SentryStore) ListAdjustments(ctx context.Context, area string, limit int) ([]ThresholdAdjustment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT anomaly_id, area, label, confidence, delta, table_version, applied_at
		FROM sentry_threshold_adjustments
		WHERE area = ? ORDER BY applied_at DESC LIMIT ?`,
		area, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list threshold adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []ThresholdAdjustment
	for rows.Next() {
		var adj ThresholdAdjustment
		if err := rows.Scan(
			&adj.AnomalyID, &adj.Area, &adj.Label, &adj.Confidence,
			&adj.Delta, &adj.TableVersion, &adj.AppliedAt,
		); err != nil {
			return nil, fmt.Errorf("scan threshold adjustment row: %w", err)
		}
		adjustments = append(adjustments, adj)
	}
	return adjustments, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
