// Package database provides Postgres connection pool management and schema bootstrap.
//
// The ingester keeps a single table of daily prices:
//   - stock_prices: one row per (symbol, ts), rewritten in place by upserts
package database
