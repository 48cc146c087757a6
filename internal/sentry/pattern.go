package sentry

import (
	"context"

	"github.com/AvaQuinn/storesight/pkg/behavior"
)

// PatternAnalyzer is an extension point for pattern-level deviation
// detection (temporal, spatial, frequency) layered on top of the Z-score
// core. Implementations are registered on the plugin and run after the
// baseline evaluation; a nil result means the analyzer has nothing to add.
//
// No analyzers ship built in. The interface exists so new strategies can be
// added without touching the core detection path.
type PatternAnalyzer interface {
	// Name identifies the analyzer in logs and anomaly records.
	Name() string

	// Analyze inspects one event in the context of its baseline (which may
	// be nil when no profile exists yet).
	Analyze(ctx context.Context, e *behavior.Event, profile *behavior.BaselineProfile) (*behavior.AnomalyEvent, error)
}
