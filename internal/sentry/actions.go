package sentry

import (
	"fmt"

	"github.com/AvaQuinn/storesight/pkg/behavior"
)

// eventTypeLabels render event types in human-readable descriptions.
var eventTypeLabels = map[behavior.EventType]string{
	behavior.EventLoitering:    "loitering duration",
	behavior.EventCrowdDensity: "crowd density",
	behavior.EventMotionSpike:  "motion intensity",
	behavior.EventDwellTime:    "dwell time",
	behavior.EventOther:        "activity level",
}

// recommendedActions is a static lookup, not operator-configurable: the
// playbook per event type, with an escalation step appended for
// high/critical severities.
var recommendedActions = map[behavior.EventType][]string{
	behavior.EventLoitering: {
		"Review live camera feed for the flagged area",
		"Dispatch floor staff to check on the individual",
	},
	behavior.EventCrowdDensity: {
		"Verify crowd size on the live feed",
		"Open additional checkout lanes or entrances if congested",
	},
	behavior.EventMotionSpike: {
		"Review footage around the detection timestamp",
		"Check for altercations or falls in the area",
	},
	behavior.EventDwellTime: {
		"Review live camera feed for the flagged area",
		"Check whether the area requires staff assistance",
	},
	behavior.EventOther: {
		"Review footage around the detection timestamp",
	},
}

var escalationActions = []string{
	"Notify the on-duty security manager",
	"Preserve footage for incident review",
}

// describeAnomaly builds the human-readable summary for an anomaly decision.
func describeAnomaly(e *behavior.Event, severity string, value, expected, zScore float64) string {
	label := eventTypeLabels[e.Type]
	if label == "" {
		label = string(e.Type)
	}
	return fmt.Sprintf("%s %s in area %q: observed %.2f vs baseline %.2f (%.1f sigma)",
		severity, label, e.Area, value, expected, zScore)
}

// actionsFor returns the recommended action list for an anomaly.
func actionsFor(eventType behavior.EventType, severity string) []string {
	base := recommendedActions[eventType]
	if base == nil {
		base = recommendedActions[behavior.EventOther]
	}

	actions := make([]string, 0, len(base)+len(escalationActions))
	actions = append(actions, base...)
	if severity == behavior.SeverityHigh || severity == behavior.SeverityCritical {
		actions = append(actions, escalationActions...)
	}
	return actions
}
