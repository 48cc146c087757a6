package sentry

import (
	"database/sql"

	"github.com/AvaQuinn/storesight/pkg/plugin"
)

// migrations returns the sentry plugin's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create sentry tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS sentry_events (
						id               TEXT PRIMARY KEY,
						store_id         TEXT NOT NULL,
						camera_id        TEXT NOT NULL,
						area             TEXT NOT NULL DEFAULT '',
						event_type       TEXT NOT NULL,
						confidence       REAL NOT NULL DEFAULT 0,
						duration_secs    REAL NOT NULL DEFAULT 0,
						person_count     REAL NOT NULL DEFAULT 0,
						motion_intensity REAL NOT NULL DEFAULT 0,
						timestamp        DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_sentry_events_store_time ON sentry_events(store_id, timestamp)`,
					`CREATE INDEX IF NOT EXISTS idx_sentry_events_type ON sentry_events(store_id, event_type, timestamp)`,

					`CREATE TABLE IF NOT EXISTS sentry_baselines (
						store_id    TEXT NOT NULL,
						area        TEXT NOT NULL,
						event_type  TEXT NOT NULL,
						time_window TEXT NOT NULL,
						mean        REAL NOT NULL DEFAULT 0,
						std_dev     REAL NOT NULL DEFAULT 0.01,
						samples     INTEGER NOT NULL DEFAULT 0,
						updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						PRIMARY KEY (store_id, area, event_type, time_window)
					)`,
					`CREATE INDEX IF NOT EXISTS idx_sentry_baselines_updated ON sentry_baselines(updated_at)`,

					`CREATE TABLE IF NOT EXISTS sentry_anomalies (
						id                  TEXT PRIMARY KEY,
						event_id            TEXT NOT NULL,
						store_id            TEXT NOT NULL,
						camera_id           TEXT NOT NULL,
						area                TEXT NOT NULL DEFAULT '',
						event_type          TEXT NOT NULL,
						severity            TEXT NOT NULL DEFAULT 'low',
						suppressed          INTEGER NOT NULL DEFAULT 0,
						z_score             REAL NOT NULL DEFAULT 0,
						value               REAL NOT NULL DEFAULT 0,
						expected            REAL NOT NULL DEFAULT 0,
						confidence          REAL NOT NULL DEFAULT 0,
						description         TEXT NOT NULL DEFAULT '',
						recommended_actions TEXT NOT NULL DEFAULT '[]',
						alert_generated     INTEGER NOT NULL DEFAULT 0,
						detected_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_sentry_anomalies_store ON sentry_anomalies(store_id)`,
					`CREATE INDEX IF NOT EXISTS idx_sentry_anomalies_detected ON sentry_anomalies(detected_at)`,

					`CREATE TABLE IF NOT EXISTS sentry_threshold_adjustments (
						id            INTEGER PRIMARY KEY AUTOINCREMENT,
						anomaly_id    TEXT NOT NULL,
						area          TEXT NOT NULL,
						label         TEXT NOT NULL,
						confidence    REAL NOT NULL DEFAULT 0,
						delta         REAL NOT NULL DEFAULT 0,
						table_version INTEGER NOT NULL DEFAULT 0,
						applied_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_sentry_adjustments_area ON sentry_threshold_adjustments(area, applied_at)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
