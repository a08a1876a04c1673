package config

import (
	"time"

	"github.com/rickgao/stock-prices/internal/model"
)

// Default values for optional configuration fields.
const (
	DefaultInstanceID       = "stock-ingester"
	DefaultBaseURL          = "https://www.alphavantage.co"
	DefaultFunction         = "TIME_SERIES_DAILY_ADJUSTED"
	DefaultOutputSize       = "compact"
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxRetries       = 5
	DefaultBackoffBase      = 1.5
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultTable            = "stock_prices"
	DefaultSymbol           = "AAPL"
	DefaultConcurrency      = 1
	DefaultWriteMode        = "best_effort"
	DefaultScheduleCron     = "0 * * * *"
	DefaultScheduleTimezone = "UTC"
	DefaultHealthPort       = 8080
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

func (c *IngesterConfig) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Provider defaults
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultBaseURL
	}
	if c.Provider.Function == "" {
		c.Provider.Function = DefaultFunction
	}
	if c.Provider.OutputSize == "" {
		c.Provider.OutputSize = DefaultOutputSize
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = DefaultAPITimeout
	}
	if c.Provider.MaxRetries == 0 {
		c.Provider.MaxRetries = DefaultMaxRetries
	}
	if c.Provider.BackoffBase == 0 {
		c.Provider.BackoffBase = DefaultBackoffBase
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}
	if c.Database.Table == "" {
		c.Database.Table = DefaultTable
	}

	// An explicit list that cleans to nothing stays empty and fails validation.
	if c.Symbols == nil {
		c.Symbols = []string{DefaultSymbol}
	} else {
		c.Symbols = model.NormalizeSymbols(c.Symbols)
	}

	// Pipeline defaults
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = DefaultConcurrency
	}
	if c.Pipeline.WriteMode == "" {
		c.Pipeline.WriteMode = DefaultWriteMode
	}

	// Schedule defaults
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = DefaultScheduleCron
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = DefaultScheduleTimezone
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
