package model

import (
	"math"
	"time"
)

// PlaytimeMinutes returns the whole minutes between join and leave, rounding
// half to even. Negative spans count as zero.
func PlaytimeMinutes(join, leave time.Time) int {
	minutes := leave.Sub(join).Minutes()
	if minutes <= 0 {
		return 0
	}
	return int(math.RoundToEven(minutes))
}

// NewSession closes the online interval of a tracked player at leave
func NewSession(p TrackedPlayer, leave time.Time) Session {
	return Session{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		JoinTime:   p.JoinTime,
		LeaveTime:  leave,
		Minutes:    PlaytimeMinutes(p.JoinTime, leave),
	}
}
