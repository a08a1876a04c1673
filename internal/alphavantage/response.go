package alphavantage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rickgao/stock-prices/internal/model"
)

// Kind classifies a decoded API response.
type Kind int

const (
	// KindEmpty is a well-formed response without a time series.
	KindEmpty Kind = iota
	// KindSeries carries a time series keyed by date.
	KindSeries
	// KindSoftError is an application-level failure inside a 200 response.
	KindSoftError
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindSeries:
		return "series"
	case KindSoftError:
		return "soft_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Soft error keys, checked in this order.
const (
	KeyErrorMessage = "Error Message"
	KeyNote         = "Note"
	KeyInformation  = "Information"
)

var softErrorKeys = []string{KeyErrorMessage, KeyNote, KeyInformation}

// Response is the typed form of an Alpha Vantage time-series payload.
// Exactly one of Series (KindSeries) or Soft (KindSoftError) is meaningful.
type Response struct {
	Kind      Kind
	SeriesKey string            // e.g., "Time Series (Daily)"
	Series    []model.RawRecord // Sorted by date
	Soft      *SoftError
}

// ParseResponse decodes a response body and classifies it.
// An error means the body is not a JSON object or the series is not keyed by date.
func ParseResponse(body []byte) (Response, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]json.RawMessage
	if err := dec.Decode(&payload); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if payload == nil {
		return Response{}, fmt.Errorf("decode response: body is null")
	}

	for _, key := range softErrorKeys {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		return Response{
			Kind: KindSoftError,
			Soft: &SoftError{Key: key, Message: softMessage(raw)},
		}, nil
	}

	seriesKey := findSeriesKey(payload)
	if seriesKey == "" {
		return Response{Kind: KindEmpty}, nil
	}

	records, err := decodeSeries(payload[seriesKey])
	if err != nil {
		return Response{}, fmt.Errorf("decode %q: %w", seriesKey, err)
	}

	return Response{
		Kind:      KindSeries,
		SeriesKey: seriesKey,
		Series:    records,
	}, nil
}

// findSeriesKey returns the first key starting with "time series" (case-insensitive).
// Map iteration order is random, so keys are sorted first.
func findSeriesKey(payload map[string]json.RawMessage) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if strings.HasPrefix(strings.ToLower(k), "time series") {
			return k
		}
	}
	return ""
}

func decodeSeries(raw json.RawMessage) ([]model.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var series map[string]any
	if err := dec.Decode(&series); err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(series))
	for date, v := range series {
		rec := model.RawRecord{Date: date}
		if fields, ok := v.(map[string]any); ok {
			rec.Fields = fields
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Date < records[j].Date
	})

	return records, nil
}

func softMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
