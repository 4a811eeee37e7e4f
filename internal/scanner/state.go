package scanner

import "time"

// State is the lifecycle state of a Loop
type State int32

const (
	RUNNING State = iota
	SHUTTING_DOWN
	STOPPED
)

func (s State) String() string {
	switch s {
	case RUNNING:
		return "RUNNING"
	case SHUTTING_DOWN:
		return "SHUTTING_DOWN"
	case STOPPED:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// TickInfo summarises the last successful poll
type TickInfo struct {
	State            string    `json:"state"`
	At               time.Time `json:"at"`
	OnlineCount      int       `json:"online_count"`
	SampleSize       int       `json:"sample_size"`
	Ratio            float64   `json:"ratio"`
	IntervalSeconds  float64   `json:"interval_seconds"`
	ThresholdSeconds float64   `json:"threshold_seconds"`
}
