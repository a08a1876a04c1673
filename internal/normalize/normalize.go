// Package normalize converts raw provider records into canonical price rows.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/stock-prices/internal/model"
)

var errNotObject = errors.New("record is not an object")

// dateLayouts are tried in order; anything after the date is discarded.
var dateLayouts = []string{
	model.DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// Skip describes a record dropped during normalization.
type Skip struct {
	Symbol string
	Date   string
	Err    error
}

// Result holds the rows that survived normalization and the records that did not.
type Result struct {
	Rows    []model.PriceRow
	Skipped []Skip
}

// Normalizer maps provider records onto PriceRow using a field map.
type Normalizer struct {
	fields model.FieldMap
	logger *slog.Logger
}

// New creates a Normalizer.
func New(fields model.FieldMap, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		fields: fields,
		logger: logger,
	}
}

// Normalize converts records for one symbol. It never fails: malformed records
// are logged and reported in Result.Skipped. Missing or empty numeric fields become 0.
// Records that collapse onto the same trading date keep the last one in date order.
func (n *Normalizer) Normalize(symbol string, records []model.RawRecord) Result {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	sorted := make([]model.RawRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})

	var res Result
	index := make(map[string]int, len(sorted))

	for _, rec := range sorted {
		row, err := n.convert(symbol, rec)
		if err != nil {
			n.logger.Warn("skipping malformed record",
				"symbol", symbol,
				"date", rec.Date,
				"error", err,
			)
			res.Skipped = append(res.Skipped, Skip{Symbol: symbol, Date: rec.Date, Err: err})
			continue
		}

		if i, ok := index[row.Day()]; ok {
			res.Rows[i] = row
			continue
		}
		index[row.Day()] = len(res.Rows)
		res.Rows = append(res.Rows, row)
	}

	return res
}

func (n *Normalizer) convert(symbol string, rec model.RawRecord) (model.PriceRow, error) {
	date, err := ParseDate(rec.Date)
	if err != nil {
		return model.PriceRow{}, err
	}
	if rec.Fields == nil {
		return model.PriceRow{}, errNotObject
	}

	row := model.PriceRow{Symbol: symbol, Date: date}

	prices := []struct {
		key string
		dst *float64
	}{
		{n.fields.Open, &row.Open},
		{n.fields.High, &row.High},
		{n.fields.Low, &row.Low},
		{n.fields.Close, &row.Close},
	}
	for _, p := range prices {
		v, err := toFloat(rec.Fields[p.key])
		if err != nil {
			return model.PriceRow{}, fmt.Errorf("%s: %w", p.key, err)
		}
		*p.dst = v
	}

	row.Volume, err = toInt(rec.Fields[n.fields.Volume])
	if err != nil {
		return model.PriceRow{}, fmt.Errorf("%s: %w", n.fields.Volume, err)
	}

	return row, nil
}

// ParseDate reduces a provider date key to a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		var err error
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, fmt.Errorf("invalid number %q", x)
		}
	case json.Number:
		var err error
		if f, err = x.Float64(); err != nil {
			return 0, fmt.Errorf("invalid number %q", string(x))
		}
	case float64:
		f = x
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite number %v", f)
	}
	return f, nil
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", x)
		}
		return n, nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", string(x))
		}
		return n, nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("invalid integer %v", x)
		}
		return int64(x), nil
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}
