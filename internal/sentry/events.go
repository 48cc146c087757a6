package sentry

// Event topics consumed by the sentry plugin.
const (
	TopicBehaviorIngested = "behavior.event.ingested"
)

// Event topics published by the sentry plugin.
const (
	TopicAnomalyDetected  = "sentry.anomaly.detected"
	TopicBaselineRebuilt  = "sentry.baseline.rebuilt"
	TopicThresholdUpdated = "sentry.threshold.updated"
)
