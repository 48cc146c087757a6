// Package alert delivers anomaly notifications to an external webhook.
// It subscribes to sentry anomaly events and forwards the ones that
// cleared alert generation (unsuppressed, high or critical severity, or
// lower if configured) as JSON POSTs.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/AvaQuinn/storesight/internal/sentry"
	"github.com/AvaQuinn/storesight/pkg/behavior"
	"github.com/AvaQuinn/storesight/pkg/plugin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
)

// RoleNotification marks plugins that deliver alerts externally.
const RoleNotification = "notification"

// Config holds the alert plugin configuration.
type Config struct {
	URL         string
	Timeout     time.Duration
	MinSeverity string
	Enabled     bool

	// RatePerMinute caps webhook deliveries; bursts up to RateBurst pass
	// immediately, the rest are dropped with a log line rather than queued.
	RatePerMinute int
	RateBurst     int
}

// severityRank orders severities for the MinSeverity gate.
var severityRank = map[string]int{
	behavior.SeverityLow:      1,
	behavior.SeverityMedium:   2,
	behavior.SeverityHigh:     3,
	behavior.SeverityCritical: 4,
}

// Module implements the alert delivery plugin.
type Module struct {
	logger  *zap.Logger
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a new alert plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "alert",
		Version:      "0.1.0",
		Description:  "Delivers anomaly alerts to a configurable webhook URL",
		Dependencies: []string{"sentry"},
		Roles:        []string{RoleNotification},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = Config{
		Timeout:       10 * time.Second,
		MinSeverity:   behavior.SeverityHigh,
		Enabled:       true,
		RatePerMinute: 60,
		RateBurst:     10,
	}

	if deps.Config != nil {
		if u := deps.Config.GetString("url"); u != "" {
			m.cfg.URL = u
		}
		if d := deps.Config.GetDuration("timeout"); d > 0 {
			m.cfg.Timeout = d
		}
		if s := deps.Config.GetString("min_severity"); s != "" {
			m.cfg.MinSeverity = s
		}
		if deps.Config.IsSet("enabled") {
			m.cfg.Enabled = deps.Config.GetBool("enabled")
		}
		if n := deps.Config.GetInt("rate_per_minute"); n > 0 {
			m.cfg.RatePerMinute = n
		}
		if n := deps.Config.GetInt("rate_burst"); n > 0 {
			m.cfg.RateBurst = n
		}
	}

	m.client = &http.Client{Timeout: m.cfg.Timeout}
	m.limiter = rate.NewLimiter(rate.Limit(float64(m.cfg.RatePerMinute)/60.0), m.cfg.RateBurst)

	if m.cfg.URL == "" {
		m.logger.Warn("alert URL not configured; alerts will be dropped")
	}

	m.logger.Info("alert module initialized",
		zap.String("url", m.cfg.URL),
		zap.Duration("timeout", m.cfg.Timeout),
		zap.String("min_severity", m.cfg.MinSeverity),
		zap.Bool("enabled", m.cfg.Enabled),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("alert module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("alert module stopped")
	return nil
}

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: sentry.TopicAnomalyDetected, Handler: m.handleAnomaly},
	}
}

// AlertPayload is the JSON body sent to the webhook URL.
type AlertPayload struct {
	Event     string                 `json:"event"`
	Source    string                 `json:"source"`
	Timestamp string                 `json:"timestamp"`
	Anomaly   *behavior.AnomalyEvent `json:"anomaly"`
}

func (m *Module) handleAnomaly(ctx context.Context, event plugin.Event) {
	if !m.cfg.Enabled || m.cfg.URL == "" {
		return
	}

	anomaly, ok := event.Payload.(*behavior.AnomalyEvent)
	if !ok {
		m.logger.Debug("ignored anomaly event: unexpected payload type",
			zap.String("source", event.Source))
		return
	}
	if !m.shouldDeliver(anomaly) {
		return
	}

	if !m.limiter.Allow() {
		m.logger.Warn("alert dropped by rate limiter",
			zap.String("anomaly_id", anomaly.ID),
			zap.String("severity", anomaly.Severity),
		)
		return
	}

	payload := AlertPayload{
		Event:     event.Topic,
		Source:    event.Source,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Anomaly:   anomaly,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("failed to marshal alert payload",
			zap.String("anomaly_id", anomaly.ID),
			zap.Error(err),
		)
		return
	}

	m.send(ctx, body, anomaly.ID)
}

// shouldDeliver applies the alert gate: the detector must have marked the
// decision alertable, and its severity must clear the configured floor.
func (m *Module) shouldDeliver(a *behavior.AnomalyEvent) bool {
	if !a.AlertGenerated {
		return false
	}
	return severityRank[a.Severity] >= severityRank[m.cfg.MinSeverity]
}

func (m *Module) send(ctx context.Context, body []byte, anomalyID string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.URL, bytes.NewReader(body))
	if err != nil {
		m.logger.Error("failed to create alert request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "StoreSight-Alert/0.1")

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Warn("alert delivery failed",
			zap.String("url", m.cfg.URL),
			zap.String("anomaly_id", anomalyID),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		m.logger.Warn("alert endpoint returned error",
			zap.String("url", m.cfg.URL),
			zap.String("anomaly_id", anomalyID),
			zap.Int("status_code", resp.StatusCode),
		)
		return
	}

	m.logger.Debug("alert delivered",
		zap.String("anomaly_id", anomalyID),
		zap.Int("status_code", resp.StatusCode),
	)
}
