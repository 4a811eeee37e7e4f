package database

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"scanner/internal/model"
)

// PresenceDatabase defines the read side used by the status API
type PresenceDatabase interface {
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.PlayerRecord, error)
	GetPlayerSessions(ctx context.Context, id model.PlayerID, limit int64) ([]model.Session, error)
	GetRecentEvents(ctx context.Context, limit int64) ([]model.Event, error)
}

type playerInfo struct {
	PlayerID   string `bson:"player_id"`
	PlayerName string `bson:"player_name"`
}

type eventDocument struct {
	Timestamp time.Time  `bson:"timestamp"`
	EventType string     `bson:"event_type"`
	EventInfo playerInfo `bson:"event_info"`
}

type sessionDocument struct {
	SessionInfo   playerInfo `bson:"session_info"`
	LeftTimestamp time.Time  `bson:"left_timestamp"`
	JoinTimestamp time.Time  `bson:"join_timestamp"`
	PlayTime      int        `bson:"play_time"`
}

type statusDocument struct {
	Timestamp   time.Time           `bson:"timestamp"`
	SnapshotID  string              `bson:"snapshot_id"`
	PlayerList  []model.RosterEntry `bson:"player_list"`
	PlayerCount int                 `bson:"player_count"`
}

// UpsertPlayerFirstSeen creates the player record if it does not exist and
// keeps the display name current. It reports whether the record was created.
func (m *mongoDB) UpsertPlayerFirstSeen(ctx context.Context, id model.PlayerID, name string, at time.Time) (bool, error) {
	filter := bson.M{"_id": id.String()}
	update := bson.M{
		"$setOnInsert": bson.M{
			"first_joined": at,
			"last_seen":    at,
			"play_time":    0,
		},
		"$set": bson.M{
			"player_name": name,
		},
	}

	result, err := m.playersCol.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		log.Error().Err(err).Str("player_id", id.String()).Msg("Failed to upsert player")
		return false, err
	}

	return result.UpsertedCount > 0, nil
}

// UpdatePlayerOnLeave adds the session minutes to the total playtime
func (m *mongoDB) UpdatePlayerOnLeave(ctx context.Context, id model.PlayerID, at time.Time, minutes int) error {
	filter := bson.M{"_id": id.String()}
	update := bson.M{
		"$inc": bson.M{"play_time": minutes},
		"$set": bson.M{"last_seen": at},
	}

	if _, err := m.playersCol.UpdateOne(ctx, filter, update); err != nil {
		log.Error().Err(err).Str("player_id", id.String()).Msg("Failed to update player on leave")
		return err
	}
	return nil
}

func (m *mongoDB) RecordEvent(ctx context.Context, event model.Event) error {
	_, err := m.eventsCol.InsertOne(ctx, eventDocument{
		Timestamp: event.Timestamp,
		EventType: string(event.Kind),
		EventInfo: playerInfo{
			PlayerID:   event.PlayerID.String(),
			PlayerName: event.PlayerName,
		},
	})
	return err
}

func (m *mongoDB) RecordSession(ctx context.Context, session model.Session) error {
	_, err := m.sessionsCol.InsertOne(ctx, sessionDocument{
		SessionInfo: playerInfo{
			PlayerID:   session.PlayerID.String(),
			PlayerName: session.PlayerName,
		},
		LeftTimestamp: session.LeaveTime,
		JoinTimestamp: session.JoinTime,
		PlayTime:      session.Minutes,
	})
	return err
}

func (m *mongoDB) RecordStatusSnapshot(ctx context.Context, snapshot model.StatusSnapshot) error {
	_, err := m.statusCol.InsertOne(ctx, statusDocument{
		Timestamp:   snapshot.Timestamp,
		SnapshotID:  snapshot.ID,
		PlayerList:  snapshot.Players,
		PlayerCount: snapshot.OnlineCount,
	})
	return err
}

// GetPlayer returns the identity record of a player
func (m *mongoDB) GetPlayer(ctx context.Context, id model.PlayerID) (*model.PlayerRecord, error) {
	var record model.PlayerRecord
	err := m.playersCol.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("player_id", id.String()).Msg("Failed to get player")
		return nil, err
	}
	return &record, nil
}

// GetPlayerSessions returns the most recent sessions of a player, newest first
func (m *mongoDB) GetPlayerSessions(ctx context.Context, id model.PlayerID, limit int64) ([]model.Session, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "join_timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := m.sessionsCol.Find(ctx, bson.M{"session_info.player_id": id.String()}, opts)
	if err != nil {
		log.Error().Err(err).Str("player_id", id.String()).Msg("Failed to find sessions")
		return nil, err
	}
	defer cursor.Close(ctx)

	sessions := make([]model.Session, 0)
	for cursor.Next(ctx) {
		var doc sessionDocument
		if err := cursor.Decode(&doc); err != nil {
			log.Error().Err(err).Msg("Failed to decode session")
			return nil, err
		}
		sessions = append(sessions, model.Session{
			PlayerID:   model.PlayerID(doc.SessionInfo.PlayerID),
			PlayerName: doc.SessionInfo.PlayerName,
			JoinTime:   doc.JoinTimestamp,
			LeaveTime:  doc.LeftTimestamp,
			Minutes:    doc.PlayTime,
		})
	}

	return sessions, cursor.Err()
}

// GetRecentEvents returns the latest events across all players, newest first
func (m *mongoDB) GetRecentEvents(ctx context.Context, limit int64) ([]model.Event, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := m.eventsCol.Find(ctx, bson.M{}, opts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to find events")
		return nil, err
	}
	defer cursor.Close(ctx)

	result := make([]model.Event, 0)
	for cursor.Next(ctx) {
		var doc eventDocument
		if err := cursor.Decode(&doc); err != nil {
			log.Error().Err(err).Msg("Failed to decode event")
			return nil, err
		}
		result = append(result, model.Event{
			Kind:       model.EventKind(doc.EventType),
			PlayerID:   model.PlayerID(doc.EventInfo.PlayerID),
			PlayerName: doc.EventInfo.PlayerName,
			Timestamp:  doc.Timestamp,
		})
	}

	return result, cursor.Err()
}
