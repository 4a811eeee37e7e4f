package database

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"scanner/internal/cache"
	"scanner/internal/model"
)

// knownPlayersDB short-circuits first-seen upserts for players the cache has
// already confirmed under the same name. Players are never deleted, so a
// cache hit always means the record exists; a renamed player falls through
// so the stored name is refreshed.
type knownPlayersDB struct {
	Database
	known cache.KnownPlayers
}

// WithKnownPlayers fronts db's first-seen upserts with a known-player cache.
// Cache failures fall through to the database.
func WithKnownPlayers(db Database, known cache.KnownPlayers) Database {
	return &knownPlayersDB{Database: db, known: known}
}

func (k *knownPlayersDB) UpsertPlayerFirstSeen(ctx context.Context, id model.PlayerID, name string, at time.Time) (bool, error) {
	if known, ok, err := k.known.KnownName(ctx, id); err == nil && ok && known == name {
		return false, nil
	}

	created, err := k.Database.UpsertPlayerFirstSeen(ctx, id, name, at)
	if err != nil {
		return false, err
	}

	if err := k.known.MarkKnown(ctx, id, name); err != nil {
		log.Warn().Err(err).Str("player_id", id.String()).Msg("Failed to cache known player")
	}
	return created, nil
}

func (k *knownPlayersDB) Close(ctx context.Context) error {
	if err := k.known.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close known player cache")
	}
	return k.Database.Close(ctx)
}
