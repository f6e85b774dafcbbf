package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Batch     BatchConfig     `yaml:"batch"`
	Providers ProvidersConfig `yaml:"providers"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

// BatchConfig holds discovery batch defaults.
type BatchConfig struct {
	Limit   int `yaml:"limit"`
	Workers int `yaml:"workers"`
}

// ProvidersConfig holds per-provider credentials and quota ceilings.
type ProvidersConfig struct {
	Discogs DiscogsConfig `yaml:"discogs"`
	Spotify SpotifyConfig `yaml:"spotify"`
}

// DiscogsConfig holds Discogs API access settings.
type DiscogsConfig struct {
	Token      string `yaml:"token"`
	DailyLimit int    `yaml:"daily_limit"`
	PerMinute  int    `yaml:"per_minute"`
}

// SpotifyConfig holds Spotify API access settings.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	DailyLimit   int    `yaml:"daily_limit"`
	PerMinute    int    `yaml:"per_minute"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "/data/airgraph.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Batch: BatchConfig{
			Limit:   100,
			Workers: 4,
		},
		Providers: ProvidersConfig{
			Discogs: DiscogsConfig{DailyLimit: 1000, PerMinute: 60},
			Spotify: SpotifyConfig{DailyLimit: 10000, PerMinute: 180},
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("AG_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("AG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("AG_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("AG_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("AG_BATCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Batch.Limit = n
		}
	}
	if v := os.Getenv("AG_BATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Batch.Workers = n
		}
	}
	if v := os.Getenv("AG_DISCOGS_TOKEN"); v != "" {
		c.Providers.Discogs.Token = v
	}
	if v := os.Getenv("AG_SPOTIFY_CLIENT_ID"); v != "" {
		c.Providers.Spotify.ClientID = v
	}
	if v := os.Getenv("AG_SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Providers.Spotify.ClientSecret = v
	}
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Batch.Limit < 1 {
		return fmt.Errorf("batch limit must be positive, got %d", c.Batch.Limit)
	}
	if c.Batch.Workers < 1 || c.Batch.Workers > 32 {
		return fmt.Errorf("batch workers must be between 1 and 32, got %d", c.Batch.Workers)
	}
	return nil
}
