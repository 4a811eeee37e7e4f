package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"scanner/internal/config"
	"scanner/internal/model"
)

// KnownPlayers remembers which player ids already have a persistent record
// and the display name stored on it, so repeated joins under an unchanged
// name can skip the first-seen upsert.
type KnownPlayers interface {
	// KnownName returns the name id was marked known with. ok is false when
	// id is unknown or expired.
	KnownName(ctx context.Context, id model.PlayerID) (name string, ok bool, err error)

	// MarkKnown records id and its current name for the configured TTL
	MarkKnown(ctx context.Context, id model.PlayerID, name string) error

	// Ping tests the connection to the cache
	Ping(ctx context.Context) error

	// Close releases resources used by the cache
	Close() error
}

// RedisCache implements KnownPlayers on Redis string keys
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache instance and verifies the connection
func NewRedisCache(ctx context.Context, cfg config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Error().Err(err).Msg("Failed to connect to Redis")
		client.Close()
		return nil, err
	}

	log.Info().
		Str("address", cfg.Address).
		Str("prefix", cfg.Prefix).
		Int("db", cfg.DB).
		Dur("ttl", cfg.KnownPlayerTTL).
		Msg("Redis cache initialized successfully")

	return NewRedisCacheFromClient(client, cfg.Prefix, cfg.KnownPlayerTTL), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// formatKey adds the prefix to the key
func (c *RedisCache) formatKey(id model.PlayerID) string {
	return c.prefix + ":player:" + id.String()
}

func (c *RedisCache) KnownName(ctx context.Context, id model.PlayerID) (string, bool, error) {
	key := c.formatKey(id)

	start := time.Now()
	name, err := c.client.Get(ctx, key).Result()
	duration := time.Since(start)

	if errors.Is(err, redis.Nil) {
		log.Debug().Str("key", key).Dur("duration", duration).Msg("Known player cache miss")
		return "", false, nil
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Dur("duration", duration).
			Msg("Error getting key from Redis")
		return "", false, err
	}

	log.Debug().
		Str("key", key).
		Dur("duration", duration).
		Msg("Known player cache hit")

	return name, true, nil
}

func (c *RedisCache) MarkKnown(ctx context.Context, id model.PlayerID, name string) error {
	key := c.formatKey(id)

	start := time.Now()
	err := c.client.Set(ctx, key, name, c.ttl).Err()
	duration := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Dur("ttl", c.ttl).
			Dur("duration", duration).
			Msg("Error setting value in Redis")
		return err
	}

	return nil
}

// Ping tests the connection to the cache
func (c *RedisCache) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.client.Ping(ctx).Err()
	duration := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Dur("duration", duration).
			Msg("Error pinging Redis")
		return err
	}

	return nil
}

// Close releases resources used by the cache
func (c *RedisCache) Close() error {
	log.Info().Msg("Closing Redis cache connection")
	return c.client.Close()
}
