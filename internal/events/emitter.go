// Package events turns tracker deltas into domain events, sessions and status
// snapshots and hands them to the store and any configured sinks.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"scanner/internal/model"
	"scanner/internal/presence"
)

// Recorder observes what the emitter did. pkg/metrics implements it.
type Recorder interface {
	EventEmitted(kind model.EventKind)
	SessionRecorded()
	SessionSkipped()
	StoreError()
}

// DefaultSinkTimeout bounds each sink call
const DefaultSinkTimeout = 5 * time.Second

type Option func(*Emitter)

// WithEventSinks adds sinks that receive each event after it is stored
func WithEventSinks(sinks ...EventSink) Option {
	return func(e *Emitter) {
		e.eventSinks = append(e.eventSinks, sinks...)
	}
}

// WithSnapshotSinks adds sinks that receive each status snapshot
func WithSnapshotSinks(sinks ...SnapshotSink) Option {
	return func(e *Emitter) {
		e.snapshotSinks = append(e.snapshotSinks, sinks...)
	}
}

// WithSkipZeroSessions drops session records that round to zero minutes. The
// leave event is emitted either way.
func WithSkipZeroSessions(skip bool) Option {
	return func(e *Emitter) {
		e.skipZero = skip
	}
}

// WithSinkTimeout caps how long one sink may hold up a tick
func WithSinkTimeout(d time.Duration) Option {
	return func(e *Emitter) {
		if d > 0 {
			e.sinkTimeout = d
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(e *Emitter) {
		e.recorder = r
	}
}

// Emitter decides which store calls to make, in what order, with what payload
type Emitter struct {
	store         Store
	eventSinks    []EventSink
	snapshotSinks []SnapshotSink
	skipZero      bool
	sinkTimeout   time.Duration
	recorder      Recorder
}

func NewEmitter(store Store, opts ...Option) *Emitter {
	e := &Emitter{
		store:       store,
		skipZero:    true,
		sinkTimeout: DefaultSinkTimeout,
		recorder:    nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch persists the joins and leaves of one tick and, when anything
// changed, a status snapshot of roster. Failures are logged and returned
// joined; nothing is retried and the tracker is never rolled back.
func (e *Emitter) Dispatch(ctx context.Context, delta presence.Delta, roster []model.RosterEntry, now time.Time) error {
	var errs []error

	for _, p := range delta.Joined {
		errs = append(errs, e.join(ctx, p))
	}

	for _, p := range delta.Left {
		errs = append(errs, e.leave(ctx, p, p.LastSeen))
	}

	if delta.Changed() {
		errs = append(errs, e.snapshot(ctx, delta.OnlineCount, roster, now))
	}

	return errors.Join(errs...)
}

// Flush force-emits a leave for every player, using the last confirmed
// sighting as the leave instant. Every player is attempted once.
func (e *Emitter) Flush(ctx context.Context, players []model.TrackedPlayer) error {
	var errs []error
	for _, p := range players {
		log.Info().
			Str("player_id", p.ID.String()).
			Str("player_name", p.Name).
			Msg("Logging leave event due to shutdown")
		errs = append(errs, e.leave(ctx, p, p.LastSeen))
	}
	return errors.Join(errs...)
}

func (e *Emitter) join(ctx context.Context, p model.TrackedPlayer) error {
	log.Info().
		Str("player_id", p.ID.String()).
		Str("player_name", p.Name).
		Msg("Player joined")

	var errs []error

	created, err := e.store.UpsertPlayerFirstSeen(ctx, p.ID, p.Name, p.JoinTime)
	if err != nil {
		errs = append(errs, e.storeErr("upsert player", p.ID, err))
	} else if created {
		errs = append(errs, e.emit(ctx, model.Event{
			Kind:       model.NEW_PLAYER,
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Timestamp:  p.JoinTime,
		}))
	}

	errs = append(errs, e.emit(ctx, model.Event{
		Kind:       model.PLAYER_JOIN,
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Timestamp:  p.JoinTime,
	}))

	return errors.Join(errs...)
}

func (e *Emitter) leave(ctx context.Context, p model.TrackedPlayer, at time.Time) error {
	session := model.NewSession(p, at)

	log.Info().
		Str("player_id", p.ID.String()).
		Str("player_name", p.Name).
		Time("last_seen", at).
		Int("minutes", session.Minutes).
		Msg("Player left")

	var errs []error

	if err := e.store.UpdatePlayerOnLeave(ctx, p.ID, at, session.Minutes); err != nil {
		errs = append(errs, e.storeErr("update player", p.ID, err))
	}

	if session.Minutes == 0 && e.skipZero {
		e.recorder.SessionSkipped()
		log.Debug().Str("player_id", p.ID.String()).Msg("Skipping zero minute session")
	} else if err := e.store.RecordSession(ctx, session); err != nil {
		errs = append(errs, e.storeErr("record session", p.ID, err))
	} else {
		e.recorder.SessionRecorded()
	}

	errs = append(errs, e.emit(ctx, model.Event{
		Kind:       model.PLAYER_LEAVE,
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Timestamp:  at,
	}))

	return errors.Join(errs...)
}

func (e *Emitter) emit(ctx context.Context, event model.Event) error {
	if err := e.store.RecordEvent(ctx, event); err != nil {
		return e.storeErr("record "+string(event.Kind), event.PlayerID, err)
	}
	e.recorder.EventEmitted(event.Kind)

	for _, sink := range e.eventSinks {
		sinkCtx, cancel := context.WithTimeout(ctx, e.sinkTimeout)
		err := sink.PublishEvent(sinkCtx, event)
		cancel()
		if err != nil {
			log.Warn().
				Err(err).
				Str("event_type", string(event.Kind)).
				Str("player_id", event.PlayerID.String()).
				Msg("Failed to publish event")
		}
	}
	return nil
}

func (e *Emitter) snapshot(ctx context.Context, onlineCount int, roster []model.RosterEntry, now time.Time) error {
	snapshot := model.StatusSnapshot{
		ID:          uuid.NewString(),
		OnlineCount: onlineCount,
		Players:     roster,
		Timestamp:   now,
	}
	if snapshot.Players == nil {
		snapshot.Players = []model.RosterEntry{}
	}

	if err := e.store.RecordStatusSnapshot(ctx, snapshot); err != nil {
		e.recorder.StoreError()
		log.Error().Err(err).Int("player_count", onlineCount).Msg("Failed to record status snapshot")
		return fmt.Errorf("%w: record status snapshot: %w", ErrStoreWrite, err)
	}

	for _, sink := range e.snapshotSinks {
		sinkCtx, cancel := context.WithTimeout(ctx, e.sinkTimeout)
		err := sink.PublishSnapshot(sinkCtx, snapshot)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("snapshot_id", snapshot.ID).Msg("Failed to publish status snapshot")
		}
	}
	return nil
}

func (e *Emitter) storeErr(op string, id model.PlayerID, err error) error {
	e.recorder.StoreError()
	log.Error().Err(err).Str("player_id", id.String()).Msgf("Failed to %s", op)
	return fmt.Errorf("%w: %s %s: %w", ErrStoreWrite, op, id, err)
}

type nopRecorder struct{}

func (nopRecorder) EventEmitted(model.EventKind) {}
func (nopRecorder) SessionRecorded()             {}
func (nopRecorder) SessionSkipped()              {}
func (nopRecorder) StoreError()                  {}
