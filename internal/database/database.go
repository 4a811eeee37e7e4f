package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"scanner/internal/config"
	"scanner/internal/events"
)

const (
	playersCollection  = "Players"
	eventsCollection   = "player_events"
	sessionsCollection = "player_sessions"
	statusCollection   = "server_status"
)

// ErrNotFound is returned by lookups that match no document
var ErrNotFound = errors.New("not found")

type Database interface {
	events.Store
	PresenceDatabase

	Health() error
	Close(ctx context.Context) error
}

type mongoDB struct {
	client *mongo.Client
	db     *mongo.Database

	playersCol  *mongo.Collection
	eventsCol   *mongo.Collection
	sessionsCol *mongo.Collection
	statusCol   *mongo.Collection
}

// timeSeries describes the append-only collections and their time fields
var timeSeries = []struct {
	name      string
	timeField string
	metaField string
}{
	{sessionsCollection, "join_timestamp", "session_info"},
	{eventsCollection, "timestamp", "event_info"},
	{statusCollection, "timestamp", ""},
}

func New(ctx context.Context, cfg config.MongoDBConfig) (Database, error) {
	clientOptions := options.Client().ApplyURI(cfg.URI)
	if cfg.Username != "" {
		clientOptions.SetAuth(options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	db := client.Database(cfg.DB)

	if err := ensureCollections(ctx, db); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	playersCol := db.Collection(playersCollection)
	indexModels := []mongo.IndexModel{
		{
			// Index for playtime leaderboards
			Keys:    bson.D{{Key: "play_time", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "player_name", Value: 1}},
			Options: options.Index(),
		},
	}
	if _, err := playersCol.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Str("Collection", playersCollection).Msg("Error creating indexes")
	}

	log.Info().Str("db", cfg.DB).Msg("MongoDB connection established")

	return &mongoDB{
		client:      client,
		db:          db,
		playersCol:  playersCol,
		eventsCol:   db.Collection(eventsCollection),
		sessionsCol: db.Collection(sessionsCollection),
		statusCol:   db.Collection(statusCollection),
	}, nil
}

// ensureCollections creates the time-series collections that do not exist yet
func ensureCollections(ctx context.Context, db *mongo.Database) error {
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}

	existing := make(map[string]bool, len(names))
	for _, name := range names {
		existing[name] = true
	}

	for _, ts := range timeSeries {
		if existing[ts.name] {
			continue
		}

		tsOpts := options.TimeSeries().SetTimeField(ts.timeField).SetGranularity("seconds")
		if ts.metaField != "" {
			tsOpts.SetMetaField(ts.metaField)
		}

		if err := db.CreateCollection(ctx, ts.name, options.CreateCollection().SetTimeSeriesOptions(tsOpts)); err != nil {
			return fmt.Errorf("create collection %s: %w", ts.name, err)
		}
		log.Info().Str("Collection", ts.name).Msg("Created time-series collection")
	}

	return nil
}

// Health implements Database interface
func (m *mongoDB) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := m.client.Ping(ctx, nil)

	if err != nil {
		log.Error().Msgf("Database health error: %v", err)
		return err
	}

	return nil
}

func (m *mongoDB) Close(ctx context.Context) error {
	log.Info().Msg("Closing MongoDB connection")
	return m.client.Disconnect(ctx)
}
