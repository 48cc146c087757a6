package sentry

import "github.com/prometheus/client_golang/prometheus"

// Prometheus detection metrics.
var (
	eventsProcessedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentry_events_processed_total",
			Help: "Total number of behavior events processed.",
		},
	)
	anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentry_anomalies_total",
			Help: "Total number of anomalies detected, by severity.",
		},
		[]string{"severity"},
	)
	suppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentry_suppressed_total",
			Help: "Total number of anomalies suppressed by hysteresis.",
		},
	)
	baselinesTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentry_baselines_tracked",
			Help: "Number of hysteresis keys currently tracked.",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsProcessedTotal)
	prometheus.MustRegister(anomaliesTotal)
	prometheus.MustRegister(suppressedTotal)
	prometheus.MustRegister(baselinesTracked)
}
