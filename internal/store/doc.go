// Package store implements the Postgres sink for daily price rows.
//
// Every write is an upsert keyed by (symbol, ts): a new key inserts, an existing
// key has open/high/low/close/volume overwritten and updated_at refreshed.
// Applying the same row twice leaves the same values with a newer updated_at.
//
// Each Upsert call owns one transaction. The write mode decides what a failing row does:
//   - best_effort: the row is rolled back to its own savepoint and skipped; the rest commit
//   - atomic: the whole transaction rolls back and Upsert returns an error
package store
