package alphavantage

import (
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("alphavantage http error %d: %s", e.StatusCode, e.Message)
}

// IsThrottled reports whether the status signals rate limiting.
func (e *HTTPError) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// SoftError is a failure reported inside an otherwise successful response.
type SoftError struct {
	Key     string // "Note", "Information" or "Error Message"
	Message string
}

func (e *SoftError) Error() string {
	return fmt.Sprintf("alphavantage %s: %s", e.Key, e.Message)
}

// IsThrottled reports whether the provider is rate limiting this key.
// Alpha Vantage uses "Note" and "Information" for call-frequency notices.
func (e *SoftError) IsThrottled() bool {
	return e.Key == KeyNote || e.Key == KeyInformation
}

// RetryError is returned once every attempt of a fetch has failed.
type RetryError struct {
	Attempts int
	Last     error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("max retries exceeded after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryError) Unwrap() error {
	return e.Last
}
