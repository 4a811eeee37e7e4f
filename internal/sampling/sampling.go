// Package sampling converts the quality of a status sample into the timing
// decisions of the scanner: how long a player may go unsampled before being
// declared gone, how long to wait before the next query, and how confident we
// still are that an unsampled player is online.
//
// Every function here is pure and total. Degenerate inputs (no players online,
// empty sample) return the most patient answer rather than an error.
package sampling

import (
	"math"
	"time"
)

const (
	// MinRatio keeps the visibility scale finite for tiny samples
	MinRatio = 1e-3

	// Default exponents of the adaptive model
	DefaultVisibilityExponent = 0.4
	DefaultSizeExponent       = 0.1
	DefaultIntervalExponent   = 0.8
)

// Bounds is a base value with the clamp range around it
type Bounds struct {
	Base time.Duration
	Min  time.Duration
	Max  time.Duration
}

func (b Bounds) clamp(d time.Duration) time.Duration {
	if d < b.Min {
		return b.Min
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// SamplingRatio returns sampleSize/onlineCount, or 0 when nobody is online.
// The result is not clamped: a non-atomic read can report more sampled
// players than online players.
func SamplingRatio(sampleSize, onlineCount int) float64 {
	if onlineCount <= 0 {
		return 0
	}
	return float64(sampleSize) / float64(onlineCount)
}

// ClampRatio limits a ratio to [MinRatio, 1]
func ClampRatio(ratio float64) float64 {
	if math.IsNaN(ratio) || ratio < MinRatio {
		return MinRatio
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// VisibilityScale is 1/ratio after clamping, so it is always in [1, 1/MinRatio]
func VisibilityScale(sampleSize, onlineCount int) float64 {
	return 1 / ClampRatio(SamplingRatio(sampleSize, onlineCount))
}

// SizeScale grows logarithmically with the number of players online
func SizeScale(onlineCount int) float64 {
	if onlineCount <= 1 {
		return 1
	}
	return 1 + math.Log10(float64(onlineCount))
}

// AbsenceThreshold returns how long a player may be missing from samples
// before being declared left. Poor coverage and bigger servers both mean more
// patience.
func AbsenceThreshold(sampleSize, onlineCount int, bounds Bounds) time.Duration {
	return absenceThreshold(sampleSize, onlineCount, bounds, DefaultVisibilityExponent, DefaultSizeExponent)
}

func absenceThreshold(sampleSize, onlineCount int, bounds Bounds, visibilityExp, sizeExp float64) time.Duration {
	if sampleSize <= 0 || onlineCount <= 0 {
		return bounds.Max
	}

	scale := math.Pow(VisibilityScale(sampleSize, onlineCount), visibilityExp) *
		math.Pow(SizeScale(onlineCount), sizeExp)

	return bounds.clamp(scaleDuration(bounds.Base, scale))
}

// PollInterval returns the wait before the next query. Full visibility keeps
// the base cadence, poorer visibility polls more often so that transiently
// sampled players are caught.
func PollInterval(sampleSize, onlineCount int, bounds Bounds) time.Duration {
	return pollInterval(sampleSize, onlineCount, bounds, DefaultIntervalExponent)
}

func pollInterval(sampleSize, onlineCount int, bounds Bounds, intervalExp float64) time.Duration {
	if sampleSize <= 0 || onlineCount <= 0 {
		return bounds.Max
	}
	if SamplingRatio(sampleSize, onlineCount) >= 1 {
		return bounds.Base
	}

	scale := 1 / math.Pow(VisibilityScale(sampleSize, onlineCount), intervalExp)
	return bounds.clamp(scaleDuration(bounds.Base, scale))
}

// Confidence is the belief that a player unsampled for absence is still
// online. It is 1 at zero absence and reaches exactly 0 at the threshold.
func Confidence(absence, threshold time.Duration) float64 {
	if absence <= 0 {
		return 1
	}
	if threshold <= 0 {
		return 0
	}
	return math.Max(1-absence.Seconds()/threshold.Seconds(), 0)
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	return time.Duration(math.Round(float64(d) * factor))
}
