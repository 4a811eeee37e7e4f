// Package presence turns a stream of partial roster samples into join and
// leave decisions. It performs no I/O; persistence of the decisions is the
// caller's concern.
package presence

import (
	"sort"
	"sync"
	"time"

	"scanner/internal/model"
	"scanner/internal/sampling"
)

// Delta is the outcome of ingesting one sample
type Delta struct {
	Joined []model.TrackedPlayer
	// Left players keep their last confirmed sighting as the leave instant
	Left []model.TrackedPlayer

	SampleSize  int
	OnlineCount int
	Ratio       float64
	Threshold   time.Duration
	Interval    time.Duration
}

// Changed reports whether anybody joined or left
func (d Delta) Changed() bool {
	return len(d.Joined) > 0 || len(d.Left) > 0
}

// Tracker holds the players currently believed to be online, keyed by id.
// The mutex is the only synchronisation point: the poll loop writes, the HTTP
// API reads.
type Tracker struct {
	mu      sync.RWMutex
	players map[model.PlayerID]*model.TrackedPlayer
	model   sampling.Model
}

func NewTracker(m sampling.Model) *Tracker {
	return &Tracker{
		players: make(map[model.PlayerID]*model.TrackedPlayer),
		model:   m,
	}
}

// IngestSample refreshes sampled players, starts sessions for new ones, and
// decays or drops the ones missing from the sample.
func (t *Tracker) IngestSample(sample model.Sample, now time.Time) Delta {
	present := identify(sample.Players)

	delta := Delta{
		SampleSize:  len(present),
		OnlineCount: sample.OnlineCount,
		Ratio:       sampling.SamplingRatio(len(present), sample.OnlineCount),
		Threshold:   t.model.AbsenceThreshold(len(present), sample.OnlineCount),
		Interval:    t.model.PollInterval(len(present), sample.OnlineCount),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, name := range present {
		if p, ok := t.players[id]; ok {
			p.LastSeen = now
			p.Confidence = 1
			if name != "" {
				p.Name = name
			}
			continue
		}

		p := &model.TrackedPlayer{
			ID:         id,
			Name:       name,
			JoinTime:   now,
			LastSeen:   now,
			Confidence: 1,
		}
		t.players[id] = p
		delta.Joined = append(delta.Joined, *p)
	}

	for id, p := range t.players {
		if _, ok := present[id]; ok {
			continue
		}

		absence := now.Sub(p.LastSeen)
		p.Confidence = sampling.Confidence(absence, delta.Threshold)
		if absence >= delta.Threshold {
			delete(t.players, id)
			delta.Left = append(delta.Left, *p)
		}
	}

	sortPlayers(delta.Joined)
	sortPlayers(delta.Left)

	return delta
}

// Drain removes every tracked player and returns them. A second call returns
// nothing.
func (t *Tracker) Drain() []model.TrackedPlayer {
	t.mu.Lock()
	defer t.mu.Unlock()

	drained := make([]model.TrackedPlayer, 0, len(t.players))
	for _, p := range t.players {
		drained = append(drained, *p)
	}
	t.players = make(map[model.PlayerID]*model.TrackedPlayer)

	sortPlayers(drained)
	return drained
}

// Roster returns a copy of the tracked players with their current confidence
func (t *Tracker) Roster() []model.RosterEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	roster := make([]model.RosterEntry, 0, len(t.players))
	for _, p := range t.players {
		roster = append(roster, model.RosterEntry{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Confidence: p.Confidence,
			JoinTime:   p.JoinTime,
			LastSeen:   p.LastSeen,
		})
	}

	sort.Slice(roster, func(i, j int) bool {
		if roster[i].PlayerName != roster[j].PlayerName {
			return roster[i].PlayerName < roster[j].PlayerName
		}
		return roster[i].PlayerID < roster[j].PlayerID
	})
	return roster
}

// Get returns a copy of one tracked player
func (t *Tracker) Get(id model.PlayerID) (model.TrackedPlayer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.players[id]
	if !ok {
		return model.TrackedPlayer{}, false
	}
	return *p, true
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.players)
}

// identify maps the identifiable entries of a sample to their display names.
// Anonymous entries and duplicates are dropped.
func identify(entries []model.SampleEntry) map[model.PlayerID]string {
	present := make(map[model.PlayerID]string, len(entries))
	for _, e := range entries {
		id, ok := model.ParsePlayerID(e.ID)
		if !ok {
			continue
		}
		present[id] = e.Name
	}
	return present
}

func sortPlayers(players []model.TrackedPlayer) {
	sort.Slice(players, func(i, j int) bool {
		return players[i].ID < players[j].ID
	})
}
