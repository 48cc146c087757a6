package sentry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// maintenanceLoop runs the periodic housekeeping cycle until Stop:
// 1. Evicts idle hysteresis entries.
// 2. Purges baseline profiles past the retention window.
// 3. Purges anomalies and raw events past their retention windows.
func (m *Module) maintenanceLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.runMaintenance()
		}
	}
}

// runMaintenance executes a single maintenance cycle.
func (m *Module) runMaintenance() {
	ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()

	now := time.Now()

	evicted := m.hysteresis.Sweep(now)
	if evicted > 0 {
		m.logger.Debug("evicted idle hysteresis entries", zap.Int("count", evicted))
	}
	baselinesTracked.Set(float64(m.hysteresis.Len()))

	if m.store == nil {
		return
	}

	deleted, err := m.store.DeleteOlderThan(ctx, now.Add(-m.cfg.BaselineRetention))
	if err != nil {
		m.logger.Warn("failed to purge stale baselines", zap.Error(err))
	} else if deleted > 0 {
		m.logger.Info("purged stale baselines", zap.Int64("count", deleted))
	}

	deleted, err = m.store.DeleteAnomaliesBefore(ctx, now.Add(-m.cfg.AnomalyRetention))
	if err != nil {
		m.logger.Warn("failed to purge old anomalies", zap.Error(err))
	} else if deleted > 0 {
		m.logger.Info("purged old anomalies", zap.Int64("count", deleted))
	}

	deleted, err = m.store.DeleteEventsBefore(ctx, now.Add(-m.cfg.EventRetention))
	if err != nil {
		m.logger.Warn("failed to purge old events", zap.Error(err))
	} else if deleted > 0 {
		m.logger.Info("purged old events", zap.Int64("count", deleted))
	}
}
