package sentry

import (
	"math"
	"time"

	"github.com/AvaQuinn/storesight/pkg/behavior"
)

// ApplyStreamingUpdate folds one observed value into a baseline profile using
// an exponentially weighted update. A nil profile seeds a fresh one from the
// observation. The returned profile always satisfies StdDev >= MinStdDev and
// Samples monotonically non-decreasing.
//
// Smaller alpha adapts slowly and resists transient spikes; larger alpha
// tracks recent drift faster. The variance carried between updates is the
// square of the stored StdDev, so the batch and streaming paths share one
// floor and cannot diverge.
func ApplyStreamingUpdate(p *behavior.BaselineProfile, value, alpha float64, now time.Time) behavior.BaselineProfile {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.2
	}

	if p == nil || p.Samples == 0 {
		seeded := behavior.BaselineProfile{
			Mean:      value,
			StdDev:    behavior.MinStdDev,
			Samples:   1,
			UpdatedAt: now,
		}
		if p != nil {
			seeded.StoreID = p.StoreID
			seeded.Area = p.Area
			seeded.EventType = p.EventType
			seeded.TimeWindow = p.TimeWindow
		}
		return seeded
	}

	diff := value - p.Mean
	variance := p.StdDev * p.StdDev

	updated := *p
	updated.Mean = alpha*value + (1-alpha)*p.Mean
	newVariance := alpha*diff*diff + (1-alpha)*variance
	updated.StdDev = math.Max(math.Sqrt(newVariance), behavior.MinStdDev)
	updated.Samples = p.Samples + 1
	updated.UpdatedAt = now
	return updated
}

// BatchStats computes the population mean and standard deviation of a group
// of values, with the same StdDev floor the streaming path applies.
func BatchStats(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, behavior.MinStdDev
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	stdDev = math.Max(math.Sqrt(sqDiff/float64(len(values))), behavior.MinStdDev)
	return mean, stdDev
}
