package sentry

import (
	"fmt"
	"time"
)

// ClassifyTimeWindow maps a timestamp to its temporal bucket key:
// "hour_<0-23>_<weekday|weekend>". Weekend is Saturday or Sunday in the
// timestamp's location.
//
// This is the join key between batch-built and streaming-updated baselines.
// It must stay deterministic: any change to the mapping invalidates every
// stored baseline profile.
func ClassifyTimeWindow(t time.Time) string {
	part := "weekday"
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		part = "weekend"
	}
	return fmt.Sprintf("hour_%d_%s", t.Hour(), part)
}
