// Package config loads recurcal settings from the environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cyp0633/recurcal/recurrence"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"

	LogFormatText = "text"
	LogFormatJSON = "json"

	envPrefix = "RECURCAL"
)

type Config struct {
	Addr           string
	PublicURL      string
	MaxAvatarBytes int64

	Log    LogConfig
	Store  StoreConfig
	Auth   AuthConfig
	Engine EngineConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type StoreConfig struct {
	Driver     string
	SQLitePath string
}

type AuthConfig struct {
	JWTSecret  string
	SessionTTL time.Duration
	// RateLimit is the number of signup and login attempts per IP per minute
	RateLimit int
}

type EngineConfig struct {
	MaxOccurrences int
	Overflow       string
	// CacheTTL of zero disables the expansion cache
	CacheTTL time.Duration
}

// Load reads settings from RECURCAL_* environment variables, overriding
// the config file at path. An empty path looks for an optional
// recurcal.{yaml,json,toml} in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("recurcal")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	cfg := &Config{
		Addr:           v.GetString("addr"),
		PublicURL:      strings.TrimRight(v.GetString("public_url"), "/"),
		MaxAvatarBytes: v.GetInt64("max_avatar_bytes"),
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log_level")),
			Format: strings.ToLower(v.GetString("log_format")),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(v.GetString("store")),
			SQLitePath: v.GetString("sqlite_path"),
		},
		Auth: AuthConfig{
			JWTSecret:  v.GetString("jwt_secret"),
			SessionTTL: v.GetDuration("session_ttl"),
			RateLimit:  v.GetInt("auth_rate_limit"),
		},
		Engine: EngineConfig{
			MaxOccurrences: v.GetInt("max_occurrences"),
			Overflow:       strings.ToLower(v.GetString("overflow")),
			CacheTTL:       v.GetDuration("cache_ttl"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("public_url", "http://localhost:8080")
	v.SetDefault("max_avatar_bytes", 2<<20)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", LogFormatText)
	v.SetDefault("store", StoreMemory)
	v.SetDefault("sqlite_path", "recurcal.db")
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("auth_rate_limit", 10)
	v.SetDefault("max_occurrences", recurrence.DefaultMaxOccurrences)
	v.SetDefault("overflow", recurrence.OverflowRollover.String())
	v.SetDefault("cache_ttl", recurrence.DefaultCacheConfig.TTL.String())
}

// Validate checks settings shared by every command
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("sqlite_path is required when store is sqlite")
		}
	default:
		return fmt.Errorf("unknown store %q, expected %s or %s", c.Store.Driver, StoreMemory, StoreSQLite)
	}

	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q, expected %s or %s", c.Log.Format, LogFormatText, LogFormatJSON)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	if _, err := recurrence.ParseOverflowPolicy(c.Engine.Overflow); err != nil {
		return err
	}
	if c.Engine.MaxOccurrences < 1 {
		return fmt.Errorf("max_occurrences must be positive, got %d", c.Engine.MaxOccurrences)
	}
	if c.Engine.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative, got %s", c.Engine.CacheTTL)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive, got %s", c.Auth.SessionTTL)
	}
	if c.MaxAvatarBytes <= 0 {
		return fmt.Errorf("max_avatar_bytes must be positive, got %d", c.MaxAvatarBytes)
	}
	return nil
}

// ValidateServe additionally checks what the HTTP server needs
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt_secret is required to serve; set RECURCAL_JWT_SECRET")
	}
	if c.Addr == "" {
		return errors.New("addr is required to serve")
	}
	return nil
}

// SlogLevel parses Level as a slog level name
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}

// RecurrenceConfig translates the engine settings into a recurrence.EngineConfig
func (c *Config) RecurrenceConfig() recurrence.EngineConfig {
	cfg := recurrence.DefaultEngineConfig
	if c.Engine.CacheTTL == 0 {
		cfg = recurrence.DisabledCacheConfig
	} else {
		cfg.CacheConfig.TTL = c.Engine.CacheTTL
	}
	cfg.MaxOccurrences = c.Engine.MaxOccurrences
	// Validate has already rejected unknown policies
	cfg.Overflow, _ = recurrence.ParseOverflowPolicy(c.Engine.Overflow)
	return cfg
}
