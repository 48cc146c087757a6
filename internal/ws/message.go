package ws

import (
	"time"

	"github.com/AvaQuinn/storesight/pkg/behavior"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageAnomalyDetected  MessageType = "anomaly.detected"
	MessageAnomalySuppress  MessageType = "anomaly.suppressed"
	MessageBaselineRebuilt  MessageType = "baseline.rebuilt"
	MessageThresholdUpdated MessageType = "threshold.updated"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	StoreID   string      `json:"store_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// AnomalyData is the payload for anomaly.detected and anomaly.suppressed
// messages.
type AnomalyData struct {
	Anomaly *behavior.AnomalyEvent `json:"anomaly"`
}

// BaselineRebuiltData is the payload for baseline.rebuilt messages.
type BaselineRebuiltData struct {
	StoreID string `json:"store_id"`
	Built   int    `json:"built"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// ThresholdUpdatedData is the payload for threshold.updated messages.
type ThresholdUpdatedData struct {
	Area         string  `json:"area"`
	Delta        float64 `json:"delta"`
	TableVersion int64   `json:"table_version"`
}
