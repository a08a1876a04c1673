package config

import (
	"strings"
	"time"

	"github.com/rickgao/stock-prices/internal/model"
)

// IngesterConfig is the root configuration for an ingester instance.
type IngesterConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Provider ProviderConfig `yaml:"provider"`
	Database DBConfig       `yaml:"database"`
	Symbols  []string       `yaml:"symbols"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Health   HealthConfig   `yaml:"health"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this ingester.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ProviderConfig holds Alpha Vantage API settings.
type ProviderConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Function          string        `yaml:"function"`    // TIME_SERIES_DAILY_ADJUSTED or TIME_SERIES_DAILY
	OutputSize        string        `yaml:"output_size"` // compact (100 days) or full
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	BackoffBase       float64       `yaml:"backoff_base"`
	RequestsPerMinute int           `yaml:"requests_per_minute"` // 0 disables client-side pacing
}

// DBConfig holds the Postgres connection.
// URL, when set, takes precedence over the individual fields.
type DBConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
	Table    string `yaml:"table"`
}

// PipelineConfig holds run orchestration settings.
type PipelineConfig struct {
	Concurrency int    `yaml:"concurrency"`
	WriteMode   string `yaml:"write_mode"` // best_effort or atomic
}

// ScheduleConfig holds the cron trigger settings.
type ScheduleConfig struct {
	Cron       string `yaml:"cron"`
	Timezone   string `yaml:"timezone"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Port     int  `yaml:"port"`
	Disabled bool `yaml:"disabled"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ParseSymbols splits a comma-separated symbol list.
// Entries are trimmed and upper-cased; blanks are dropped.
func ParseSymbols(s string) []string {
	return model.NormalizeSymbols(strings.Split(s, ","))
}
