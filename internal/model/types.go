package model

import (
	"strings"
	"time"
)

// DateLayout is the canonical rendering of a trading date.
const DateLayout = "2006-01-02"

// -----------------------------------------------------------------------------
// Provider Types
// -----------------------------------------------------------------------------

// RawRecord is a single provider record keyed by date.
// Fields holds the decoded JSON values untouched; any of them may be missing or malformed.
// Fields is nil when the provider entry was not a JSON object.
type RawRecord struct {
	Date   string         // Provider date key (e.g., "2024-01-15" or "2024-01-15 16:00:00")
	Fields map[string]any // Provider field name -> raw value
}

// -----------------------------------------------------------------------------
// Persisted Types
// -----------------------------------------------------------------------------

// PriceRow is one symbol/date price observation, the unit of persistence.
// (Symbol, Date) is its identity. updated_at is assigned by the database on every write.
type PriceRow struct {
	Symbol string    // Upper-case ticker
	Date   time.Time // Trading date (UTC midnight)
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Day returns the trading date as YYYY-MM-DD.
func (r PriceRow) Day() string {
	return r.Date.Format(DateLayout)
}

// Key returns the row identity as "SYMBOL/YYYY-MM-DD".
func (r PriceRow) Key() string {
	return r.Symbol + "/" + r.Day()
}

// UpsertResult reports the outcome of one sink call.
type UpsertResult struct {
	Attempted int // Rows handed to the sink
	Written   int // Rows committed
	Failed    int // Rows rejected by the database
}

// FieldMap names the provider fields that feed each PriceRow value.
type FieldMap struct {
	Open   string
	High   string
	Low    string
	Close  string
	Volume string
}

// NormalizeSymbols trims and upper-cases symbols, dropping blanks and duplicates.
// The first occurrence of a symbol keeps its position. The result is never nil.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
