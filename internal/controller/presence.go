package controller

import (
	"context"

	"github.com/rs/zerolog/log"

	"scanner/internal/database"
	"scanner/internal/model"
	"scanner/internal/scanner"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Roster is the live view of tracked players
type Roster interface {
	Roster() []model.RosterEntry
}

// TickSource reports the last poll of the running loop
type TickSource interface {
	LastTick() scanner.TickInfo
}

// OnlineStatus is the tracked roster at request time
type OnlineStatus struct {
	Tracked  int                 `json:"tracked"`
	Players  []model.RosterEntry `json:"players"`
	LastTick *scanner.TickInfo   `json:"last_tick,omitempty"`
}

type PresenceController interface {
	Online() OnlineStatus
	Player(ctx context.Context, id model.PlayerID) (*model.PlayerRecord, error)
	Sessions(ctx context.Context, id model.PlayerID, limit int64) ([]model.Session, error)
	RecentEvents(ctx context.Context, limit int64) ([]model.Event, error)
}

type presenceController struct {
	db     database.PresenceDatabase
	roster Roster
	ticks  TickSource
}

// NewPresenceController serves presence reads. ticks may be nil.
func NewPresenceController(db database.PresenceDatabase, roster Roster, ticks TickSource) PresenceController {
	return &presenceController{
		db:     db,
		roster: roster,
		ticks:  ticks,
	}
}

func (c *presenceController) Online() OnlineStatus {
	players := c.roster.Roster()
	if players == nil {
		players = []model.RosterEntry{}
	}
	status := OnlineStatus{Tracked: len(players), Players: players}
	if c.ticks != nil {
		last := c.ticks.LastTick()
		status.LastTick = &last
	}
	return status
}

func (c *presenceController) Player(ctx context.Context, id model.PlayerID) (*model.PlayerRecord, error) {
	player, err := c.db.GetPlayer(ctx, id)
	if err != nil {
		log.Debug().Err(err).Str("player_id", id.String()).Msg("Failed to get player")
		return nil, err
	}
	return player, nil
}

func (c *presenceController) Sessions(ctx context.Context, id model.PlayerID, limit int64) ([]model.Session, error) {
	sessions, err := c.db.GetPlayerSessions(ctx, id, ClampLimit(limit))
	if err != nil {
		log.Error().Err(err).Str("player_id", id.String()).Msg("Failed to get player sessions")
		return nil, err
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, nil
}

func (c *presenceController) RecentEvents(ctx context.Context, limit int64) ([]model.Event, error) {
	events, err := c.db.GetRecentEvents(ctx, ClampLimit(limit))
	if err != nil {
		log.Error().Err(err).Msg("Failed to get recent events")
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// ClampLimit maps a requested page size into [1, MaxLimit], with
// non-positive values meaning DefaultLimit
func ClampLimit(limit int64) int64 {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
