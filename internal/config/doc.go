// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// DATABASE_URL, ALPHAVANTAGE_API_KEY, SYMBOLS, SCHEDULE_CRON and LOG_LEVEL override
// the file when set, so the ingester also runs with no config file at all.
// A .env file, if present, is loaded into the environment first (see LoadDotEnv).
package config
