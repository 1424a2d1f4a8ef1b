package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"spendmillion/internal/models"
)

// Config is the YAML service configuration. The catalog ships inside it so
// prices live in one reviewed place.
type Config struct {
	Game struct {
		Budget          int64 `yaml:"budget"`
		DurationSec     int   `yaml:"duration_sec"`
		LeaderboardSize int   `yaml:"leaderboard_size"`
	} `yaml:"game"`
	Catalog []models.Item `yaml:"catalog"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Game.Budget = 1_000_000
	cfg.Game.DurationSec = 300
	cfg.Game.LeaderboardSize = 20
	return &cfg
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) sessionDuration() time.Duration {
	return time.Duration(c.Game.DurationSec) * time.Second
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
