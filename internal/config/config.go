package config

import (
	"time"
)

// Config represents the entire application configuration
type Config struct {
	Env      string         `koanf:"env"`
	AppName  string         `koanf:"app_name"`
	Server   ServerConfig   `koanf:"server"`
	Sampling SamplingConfig `koanf:"sampling"`
	Sessions SessionsConfig `koanf:"sessions"`
	MongoDB  MongoDBConfig  `koanf:"mongodb"`
	Redis    RedisConfig    `koanf:"redis"`
	RabbitMQ RabbitMQConfig `koanf:"rabbitmq"`
	Telegram TelegramConfig `koanf:"telegram"`
	S3       S3Config       `koanf:"s3"`
	HTTP     HTTPConfig     `koanf:"http"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig describes the game server being scanned
type ServerConfig struct {
	Address          string        `koanf:"address"`
	QueryTimeout     time.Duration `koanf:"query_timeout"`
	FallbackInterval time.Duration `koanf:"fallback_interval"`
	FlushTimeout     time.Duration `koanf:"flush_timeout"`
}

// SamplingConfig selects the timing heuristics and their bounds
type SamplingConfig struct {
	Model              string         `koanf:"model"`
	Threshold          DurationBounds `koanf:"threshold"`
	Interval           DurationBounds `koanf:"interval"`
	VisibilityExponent float64        `koanf:"visibility_exponent"`
	SizeExponent       float64        `koanf:"size_exponent"`
	IntervalExponent   float64        `koanf:"interval_exponent"`
}

type DurationBounds struct {
	Base time.Duration `koanf:"base"`
	Min  time.Duration `koanf:"min"`
	Max  time.Duration `koanf:"max"`
}

type SessionsConfig struct {
	SkipZeroDuration bool `koanf:"skip_zero_duration"`
}

// MongoDBConfig contains MongoDB connection details
type MongoDBConfig struct {
	URI      string `koanf:"uri"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       string `koanf:"db"`
}

// RedisConfig is optional, an empty address disables the known-player cache
type RedisConfig struct {
	Address        string        `koanf:"address"`
	Password       string        `koanf:"password"`
	DB             int           `koanf:"db"`
	Prefix         string        `koanf:"prefix"`
	KnownPlayerTTL time.Duration `koanf:"known_player_ttl"`
}

// RabbitMQConfig is optional, an empty URL disables event publishing
type RabbitMQConfig struct {
	URL          string `koanf:"url"`
	ExchangeName string `koanf:"exchange_name"`
}

// TelegramConfig is optional, it needs both a token and a chat id
type TelegramConfig struct {
	Token             string `koanf:"token"`
	ChatID            int64  `koanf:"chat_id"`
	MessagesPerMinute int    `koanf:"messages_per_minute"`
}

// S3Config is optional, an empty bucket disables snapshot archiving
type S3Config struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Prefix    string `koanf:"prefix"`
}

// HTTPConfig controls the read-only status API
type HTTPConfig struct {
	Port int        `koanf:"port"`
	CORS CORSConfig `koanf:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings
type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"` // seconds that preflight requests can be cached
}

// LoggingConfig contains logging-related configurations
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// New returns the defaults every loaded config starts from
func New() *Config {
	return &Config{
		Env:     "production",
		AppName: "scanner",
		Server: ServerConfig{
			QueryTimeout:     10 * time.Second,
			FallbackInterval: 30 * time.Second,
			FlushTimeout:     30 * time.Second,
		},
		Sampling: SamplingConfig{
			Model:              "adaptive",
			Threshold:          DurationBounds{Base: 600 * time.Second, Min: 300 * time.Second, Max: 900 * time.Second},
			Interval:           DurationBounds{Base: 30 * time.Second, Min: 10 * time.Second, Max: 90 * time.Second},
			VisibilityExponent: 0.4,
			SizeExponent:       0.1,
			IntervalExponent:   0.8,
		},
		Sessions: SessionsConfig{
			SkipZeroDuration: true,
		},
		MongoDB: MongoDBConfig{
			URI: "mongodb://localhost:27017",
			DB:  "minecraft",
		},
		Redis: RedisConfig{
			Prefix:         "scanner",
			KnownPlayerTTL: 24 * time.Hour,
		},
		RabbitMQ: RabbitMQConfig{
			ExchangeName: "presence",
		},
		Telegram: TelegramConfig{
			MessagesPerMinute: 20,
		},
		S3: S3Config{
			Prefix: "snapshots",
		},
		HTTP: HTTPConfig{
			Port: 8080,
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET"},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
