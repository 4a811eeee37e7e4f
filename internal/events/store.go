package events

import (
	"context"
	"time"

	"scanner/internal/model"
)

// Store persists players, events, sessions and status snapshots. All writes
// are keyed so that a retried call does not create a second identity record.
type Store interface {
	// UpsertPlayerFirstSeen creates the identity record if absent and reports
	// whether it was created
	UpsertPlayerFirstSeen(ctx context.Context, id model.PlayerID, name string, at time.Time) (bool, error)

	// UpdatePlayerOnLeave accumulates playtime and sets the last seen instant
	UpdatePlayerOnLeave(ctx context.Context, id model.PlayerID, at time.Time, minutes int) error

	RecordEvent(ctx context.Context, event model.Event) error
	RecordSession(ctx context.Context, session model.Session) error
	RecordStatusSnapshot(ctx context.Context, snapshot model.StatusSnapshot) error
}

// EventSink receives every emitted event after it has been stored
type EventSink interface {
	PublishEvent(ctx context.Context, event model.Event) error
}

// SnapshotSink receives every emitted status snapshot after it has been stored
type SnapshotSink interface {
	PublishSnapshot(ctx context.Context, snapshot model.StatusSnapshot) error
}
