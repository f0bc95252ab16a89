package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/tictactoe/go/internal/game/rating"
	"github.com/mcdev12/tictactoe/go/internal/invites"
	"github.com/mcdev12/tictactoe/go/internal/match/notify"
	"github.com/mcdev12/tictactoe/go/internal/match/orchestrator"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		// Enabled switches profile and history storage to postgres.
		Enabled bool `yaml:"enabled"`
	} `yaml:"database"`

	NATS struct {
		Enabled bool `yaml:"enabled"`
		notify.JetStreamConfig `yaml:",inline"`
	} `yaml:"nats"`

	Match   orchestrator.Config `yaml:"match"`
	Rating  rating.Config       `yaml:"rating"`
	Invites invites.Config      `yaml:"invites"`
}

func defaultConfig() *Config {
	cfg := &Config{
		Match:   orchestrator.DefaultConfig(),
		Rating:  rating.Config{Base: rating.DefaultBase, Policy: rating.DefaultPolicy()},
		Invites: invites.DefaultConfig(),
	}
	cfg.Server.Port = "8080"
	cfg.NATS.JetStreamConfig = notify.DefaultJetStreamConfig()
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// loadConfig reads path over the defaults. A missing file is not an error.
// Environment variables override both.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if ratingPath := os.Getenv("RATING_CONFIG_PATH"); ratingPath != "" {
		rc, err := rating.LoadConfig(ratingPath)
		if err != nil {
			return nil, err
		}
		cfg.Rating = rc
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Database.Enabled = getEnvAsBool("DB_ENABLED", cfg.Database.Enabled)
	cfg.NATS.Enabled = getEnvAsBool("NATS_ENABLED", cfg.NATS.Enabled)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.Match.MatchWait = getEnvAsDuration("MATCH_WAIT", cfg.Match.MatchWait)
	cfg.Match.MoveTimeout = getEnvAsDuration("MOVE_TIMEOUT", cfg.Match.MoveTimeout)
	cfg.Match.SyntheticDelay = getEnvAsDuration("SYNTHETIC_DELAY", cfg.Match.SyntheticDelay)
	cfg.Match.RatingWindow = getEnvAsInt("RATING_WINDOW", cfg.Match.RatingWindow)
	cfg.Match.Workers = getEnvAsInt("MATCH_WORKERS", cfg.Match.Workers)
	return cfg, nil
}
