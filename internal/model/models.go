package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event kinds, stored verbatim in player_events.event_type
const (
	PLAYER_JOIN  EventKind = "PLAYER_JOIN"
	PLAYER_LEAVE EventKind = "PLAYER_LEAVE"
	NEW_PLAYER   EventKind = "NEW_PLAYER"
)

// EventKind is the type of a domain event
type EventKind string

// PlayerID is the stable identity of a player. It is the only key used for
// tracking; display names are never used to identify a player.
type PlayerID string

// ParsePlayerID canonicalises a raw id from a status sample. UUIDs are stored
// lowercase and hyphenated, anything else is kept as an opaque trimmed token.
// The second return is false for ids that carry no identity (empty or the nil
// UUID some servers use for hidden players).
func ParsePlayerID(raw string) (PlayerID, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return PlayerID(trimmed), true
	}
	if parsed == uuid.Nil {
		return "", false
	}

	return PlayerID(parsed.String()), true
}

func (id PlayerID) String() string {
	return string(id)
}

// TrackedPlayer is a player currently believed to be online
type TrackedPlayer struct {
	ID         PlayerID  `json:"player_id"`
	Name       string    `json:"player_name"`
	JoinTime   time.Time `json:"join_time"`
	LastSeen   time.Time `json:"last_seen"`
	Confidence float64   `json:"confidence"`
}

// SampleEntry is one (name, id) pair from a status sample
type SampleEntry struct {
	Name string
	ID   string
}

// Sample is the result of one status query. OnlineCount may exceed the number
// of entries since servers cap the sample size.
type Sample struct {
	OnlineCount int
	MaxPlayers  int
	Players     []SampleEntry
}

// Event is an append-only domain event
type Event struct {
	Kind       EventKind `json:"event_type"`
	PlayerID   PlayerID  `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Timestamp  time.Time `json:"timestamp"`
}

// Session is one closed online interval for a player
type Session struct {
	PlayerID   PlayerID  `json:"player_id"`
	PlayerName string    `json:"player_name"`
	JoinTime   time.Time `json:"join_timestamp"`
	LeaveTime  time.Time `json:"left_timestamp"`
	Minutes    int       `json:"play_time"`
}

// RosterEntry is one tracked player as reported in a status snapshot
type RosterEntry struct {
	PlayerID   PlayerID  `json:"player_id" bson:"player_id"`
	PlayerName string    `json:"player_name" bson:"player_name"`
	Confidence float64   `json:"confidence" bson:"confidence"`
	JoinTime   time.Time `json:"join_time" bson:"join_time"`
	LastSeen   time.Time `json:"last_seen" bson:"last_seen"`
}

// StatusSnapshot captures the tracked roster at one tick
type StatusSnapshot struct {
	ID          string        `json:"id"`
	OnlineCount int           `json:"player_count"`
	Players     []RosterEntry `json:"player_list"`
	Timestamp   time.Time     `json:"timestamp"`
}

// PlayerRecord is the persistent identity record of a player
type PlayerRecord struct {
	ID          string    `json:"player_id" bson:"_id"`
	Name        string    `json:"player_name" bson:"player_name"`
	FirstJoined time.Time `json:"first_joined" bson:"first_joined"`
	LastSeen    time.Time `json:"last_seen" bson:"last_seen"`
	PlayTime    int       `json:"play_time" bson:"play_time"` // minutes
}
