package sampling

import (
	"fmt"
	"math"
	"time"
)

// Model names accepted by New
const (
	ADAPTIVE = "adaptive"
	STEPPED  = "stepped"
	FIXED    = "fixed"
)

// stepped model adds one of these per decade of missing visibility
const thresholdStep = 60 * time.Second

// Model is the swappable set of timing heuristics the tracker and the poll
// loop depend on.
type Model interface {
	AbsenceThreshold(sampleSize, onlineCount int) time.Duration
	PollInterval(sampleSize, onlineCount int) time.Duration
}

// Params configures a Model
type Params struct {
	Threshold Bounds
	Interval  Bounds

	VisibilityExponent float64
	SizeExponent       float64
	IntervalExponent   float64
}

// DefaultParams are the bounds the scanner has always shipped with
func DefaultParams() Params {
	return Params{
		Threshold: Bounds{Base: 600 * time.Second, Min: 300 * time.Second, Max: 900 * time.Second},
		Interval:  Bounds{Base: 30 * time.Second, Min: 10 * time.Second, Max: 90 * time.Second},

		VisibilityExponent: DefaultVisibilityExponent,
		SizeExponent:       DefaultSizeExponent,
		IntervalExponent:   DefaultIntervalExponent,
	}
}

// New returns the model registered under name
func New(name string, params Params) (Model, error) {
	switch name {
	case ADAPTIVE, "":
		return &Adaptive{params: params}, nil
	case STEPPED:
		return &Stepped{params: params}, nil
	case FIXED:
		return &Fixed{Threshold: params.Threshold.Base, Interval: params.Interval.Base}, nil
	default:
		return nil, fmt.Errorf("unknown sampling model %q", name)
	}
}

// Adaptive scales the threshold up and the interval down with a power law of
// the visibility scale.
type Adaptive struct {
	params Params
}

func NewAdaptive(params Params) *Adaptive {
	return &Adaptive{params: params}
}

func (a *Adaptive) AbsenceThreshold(sampleSize, onlineCount int) time.Duration {
	return absenceThreshold(sampleSize, onlineCount, a.params.Threshold, a.params.VisibilityExponent, a.params.SizeExponent)
}

func (a *Adaptive) PollInterval(sampleSize, onlineCount int) time.Duration {
	return pollInterval(sampleSize, onlineCount, a.params.Interval, a.params.IntervalExponent)
}

// Stepped adds a minute of patience per decade of missing visibility and
// shortens the interval linearly with the sampling ratio.
type Stepped struct {
	params Params
}

func (s *Stepped) AbsenceThreshold(sampleSize, onlineCount int) time.Duration {
	bounds := s.params.Threshold
	if sampleSize <= 0 || onlineCount <= 0 {
		return bounds.Max
	}

	decades := math.Ceil(math.Log10(VisibilityScale(sampleSize, onlineCount)))
	return bounds.clamp(bounds.Base + time.Duration(decades)*thresholdStep)
}

func (s *Stepped) PollInterval(sampleSize, onlineCount int) time.Duration {
	bounds := s.params.Interval
	if sampleSize <= 0 || onlineCount <= 0 {
		return bounds.Max
	}

	ratio := SamplingRatio(sampleSize, onlineCount)
	if ratio >= 1 {
		return bounds.Base
	}

	seconds := math.RoundToEven(bounds.Base.Seconds() * ClampRatio(ratio))
	return bounds.clamp(time.Duration(seconds) * time.Second)
}

// Fixed ignores sample quality entirely: a player is gone after a constant
// time, which at a constant interval is a fixed number of missed samples.
type Fixed struct {
	Threshold time.Duration
	Interval  time.Duration
}

func (f *Fixed) AbsenceThreshold(int, int) time.Duration {
	return f.Threshold
}

func (f *Fixed) PollInterval(int, int) time.Duration {
	return f.Interval
}
