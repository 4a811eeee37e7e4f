package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"scanner/internal/sampling"
)

const (
	// EnvPrefix prefixes every override, SCANNER_MONGODB__URI sets mongodb.uri
	EnvPrefix = "SCANNER_"
	// EnvConfigPath names the config file when no path is passed
	EnvConfigPath = "SCANNER_CONFIG"
)

// LoadConfig builds a Config by layering, low to high precedence:
//  1. defaults (New)
//  2. the JSON or YAML file at path, if path is not empty
//  3. SCANNER_ environment variables, with __ separating nested keys
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("%w: error reading config file: %w", ErrLoadConfig, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: error reading environment: %w", ErrLoadConfig, err)
	}
	// the path variable itself is not a config key
	k.Delete("config")

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: error parsing config: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported config file type %q", ErrLoadConfig, path)
	}
}

// Validate checks the settings the scanner cannot run without
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return fmt.Errorf("%w: server.address must not be empty", ErrInvalidConfig)
	}
	if c.Server.QueryTimeout <= 0 {
		return fmt.Errorf("%w: server.query_timeout must be positive", ErrInvalidConfig)
	}
	if c.Server.FallbackInterval <= 0 {
		return fmt.Errorf("%w: server.fallback_interval must be positive", ErrInvalidConfig)
	}
	switch c.Sampling.Model {
	case "", sampling.ADAPTIVE, sampling.STEPPED, sampling.FIXED:
	default:
		return fmt.Errorf("%w: unknown sampling.model %q", ErrInvalidConfig, c.Sampling.Model)
	}
	exponents := map[string]float64{
		"sampling.visibility_exponent": c.Sampling.VisibilityExponent,
		"sampling.size_exponent":       c.Sampling.SizeExponent,
		"sampling.interval_exponent":   c.Sampling.IntervalExponent,
	}
	for name, v := range exponents {
		if v < 0 {
			return fmt.Errorf("%w: %s must not be negative (got %g)", ErrInvalidConfig, name, v)
		}
	}
	if err := c.Sampling.Threshold.validate("sampling.threshold"); err != nil {
		return err
	}
	if err := c.Sampling.Interval.validate("sampling.interval"); err != nil {
		return err
	}
	if c.MongoDB.URI == "" || c.MongoDB.DB == "" {
		return fmt.Errorf("%w: mongodb.uri and mongodb.db are required", ErrInvalidConfig)
	}
	return nil
}

func (b DurationBounds) validate(name string) error {
	if b.Min <= 0 {
		return fmt.Errorf("%w: %s.min must be positive", ErrInvalidConfig, name)
	}
	if b.Min > b.Base || b.Base > b.Max {
		return fmt.Errorf("%w: %s must satisfy min <= base <= max (got %s, %s, %s)", ErrInvalidConfig, name, b.Min, b.Base, b.Max)
	}
	return nil
}
