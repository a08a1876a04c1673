package alphavantage

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Default client settings.
const (
	DefaultFunction    = "TIME_SERIES_DAILY_ADJUSTED"
	DefaultOutputSize  = "compact"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 5
	DefaultBackoffBase = 1.5
)

// Client provides access to the Alpha Vantage REST API.
type Client struct {
	baseURL    string
	apiKey     string
	function   string
	outputSize string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter

	maxRetries  int
	backoffBase float64
	backoffUnit time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		function:   DefaultFunction,
		outputSize: DefaultOutputSize,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:      slog.Default(),
		maxRetries:  DefaultMaxRetries,
		backoffBase: DefaultBackoffBase,
		backoffUnit: time.Second,
		sleep:       sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the total number of attempts per fetch and the backoff base.
// The wait before retry n is base^n seconds.
func WithRetries(max int, base float64) ClientOption {
	return func(c *Client) {
		if max < 1 {
			max = 1
		}
		c.maxRetries = max
		c.backoffBase = base
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithFunction sets the time-series function (e.g., TIME_SERIES_DAILY).
func WithFunction(function string) ClientOption {
	return func(c *Client) {
		c.function = function
	}
}

// WithOutputSize sets the output size hint ("compact" or "full").
func WithOutputSize(size string) ClientOption {
	return func(c *Client) {
		c.outputSize = size
	}
}

// WithRateLimit paces requests to at most perMinute across all callers.
// Zero or negative disables pacing.
func WithRateLimit(perMinute int) ClientOption {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// Function returns the configured time-series function.
func (c *Client) Function() string {
	return c.function
}

// Backoff returns the wait before retrying after the given 1-based attempt.
func (c *Client) Backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(c.backoffBase, float64(attempt)) * float64(c.backoffUnit))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
