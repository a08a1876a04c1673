package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values when non-empty.
const (
	EnvDatabaseURL  = "DATABASE_URL"
	EnvAPIKey       = "ALPHAVANTAGE_API_KEY"
	EnvSymbols      = "SYMBOLS"
	EnvScheduleCron = "SCHEDULE_CRON"
	EnvLogLevel     = "LOG_LEVEL"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process environment.
// Variables already set are left alone. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a YAML config file, expands environment variables and applies
// environment overrides. An empty path yields a config built from the environment only.
func Load(path string) (*IngesterConfig, error) {
	var cfg IngesterConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		// Expand ${VAR} environment variables
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)
	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*IngesterConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*IngesterConfig, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *IngesterConfig) applyEnv(getenv func(string) string) {
	if v := getenv(EnvDatabaseURL); v != "" {
		c.Database.URL = v
	}
	if v := getenv(EnvAPIKey); v != "" {
		c.Provider.APIKey = v
	}
	if v := getenv(EnvSymbols); v != "" {
		c.Symbols = ParseSymbols(v)
	}
	if v := getenv(EnvScheduleCron); v != "" {
		c.Schedule.Cron = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}
