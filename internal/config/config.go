// Package config loads the cartkeeper configuration from YAML, TOML or JSON files
// with environment overrides.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aretw0/cartkeeper/internal/logging"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Provider kinds.
const (
	ProviderMemory = "memory"
	ProviderRedis  = "redis"
)

// Environment overrides.
const (
	EnvPort      = "CARTKEEPER_PORT"
	EnvProvider  = "CARTKEEPER_PROVIDER"
	EnvRedisAddr = "CARTKEEPER_REDIS_ADDR"
	EnvHorizon   = "CARTKEEPER_HORIZON"
	EnvLogLevel  = "CARTKEEPER_LOG_LEVEL"
	EnvSealKey   = "CARTKEEPER_ENCRYPTION_KEY"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Recovery   RecoveryConfig   `mapstructure:"recovery"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	// Debug enables the forced-expiry route.
	Debug     bool            `mapstructure:"debug"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type ProviderConfig struct {
	Kind    string        `mapstructure:"kind"`
	Horizon time.Duration `mapstructure:"horizon"`
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	Prefix     string        `mapstructure:"prefix"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type RecoveryConfig struct {
	ReleaseAbandoned bool `mapstructure:"release_abandoned"`
}

// EncryptionConfig enables sealing of session items at rest.
// Keys are base64 encoded 32 byte AES-256 keys.
type EncryptionConfig struct {
	Key          string   `mapstructure:"key"`
	FallbackKeys []string `mapstructure:"fallback_keys"`
}

// Enabled reports whether an active key is configured.
func (e EncryptionConfig) Enabled() bool {
	return e.Key != ""
}

// Decode returns the active and fallback keys.
func (e EncryptionConfig) Decode() ([]byte, [][]byte, error) {
	active, err := decodeKey(e.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("encryption key: %w", err)
	}
	fallback := make([][]byte, 0, len(e.FallbackKeys))
	for i, k := range e.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback key %d: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("want 32 bytes, got %d", len(key))
	}
	return key, nil
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port: "8080",
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     30,
				Burst:   60,
			},
		},
		Provider: ProviderConfig{
			Kind:    ProviderMemory,
			Horizon: 15 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "cartkeeper:",
		},
		Recovery: RecoveryConfig{
			ReleaseAbandoned: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and validates.
// A missing file is not an error: the defaults are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := readRaw(path)
		if err != nil {
			return Config{}, err
		}
		if raw != nil {
			if err := decode(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to decode %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return raw, nil
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func applyEnv(cfg *Config) error {
	if v, ok := lookup(EnvPort); ok {
		cfg.Server.Port = v
	}
	if v, ok := lookup(EnvProvider); ok {
		cfg.Provider.Kind = strings.ToLower(v)
	}
	if v, ok := lookup(EnvRedisAddr); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := lookup(EnvHorizon); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvHorizon, err)
		}
		cfg.Provider.Horizon = d
	}
	if v, ok := lookup(EnvLogLevel); ok {
		cfg.Log.Level = v
	}
	if v, ok := lookup(EnvSealKey); ok {
		cfg.Encryption.Key = v
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Provider.Kind {
	case ProviderMemory, ProviderRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown provider kind %q", c.Provider.Kind))
	}
	if c.Provider.Horizon <= 0 {
		errs = append(errs, fmt.Errorf("provider horizon must be positive, got %v", c.Provider.Horizon))
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("invalid server port %q", c.Server.Port))
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RPS <= 0 || c.Server.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate limit rps and burst must be positive"))
	}
	if c.Encryption.Enabled() {
		if _, _, err := c.Encryption.Decode(); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
