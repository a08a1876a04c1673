// Package model defines shared data types used across the stock price ingester.
//
// All persisted types mirror the stock_prices table created by internal/database.
//
// Conventions:
//   - Symbols: upper-case ticker identifiers (e.g., "AAPL")
//   - Dates: UTC calendar dates at midnight, rendered as YYYY-MM-DD
//   - Prices: float64 in the provider's quote currency
package model
