package alphavantage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rickgao/stock-prices/internal/model"
)

// Fetch returns the raw daily records for a symbol.
// A response without a time series is not an error: it yields no records.
func (c *Client) Fetch(ctx context.Context, symbol string) ([]model.RawRecord, error) {
	query := url.Values{}
	query.Set("function", c.function)
	query.Set("symbol", symbol)
	query.Set("outputsize", c.outputSize)
	query.Set("datatype", "json")

	resp, err := c.doWithRetry(ctx, symbol, query)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	if len(resp.Series) == 0 {
		c.logger.Info("no data", "symbol", symbol, "kind", resp.Kind)
		return nil, nil
	}

	c.logger.Debug("fetched series",
		"symbol", symbol,
		"series", resp.SeriesKey,
		"records", len(resp.Series),
	)

	return resp.Series, nil
}

// doRequest performs one GET /query call and classifies the body.
func (c *Client) doRequest(ctx context.Context, query url.Values) (Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+q.Encode(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	parsed, err := ParseResponse(body)
	if err != nil {
		return Response{}, err
	}
	if parsed.Kind == KindSoftError {
		return Response{}, parsed.Soft
	}

	return parsed, nil
}

// doWithRetry makes up to maxRetries attempts, sleeping base^attempt between them.
// Every failure is retried except context cancellation; no sleep follows the last attempt.
func (c *Client) doWithRetry(ctx context.Context, symbol string, query url.Values) (Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.doRequest(ctx, query)
		if err == nil {
			return resp, nil
		}

		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}

		lastErr = err
		if attempt == c.maxRetries {
			c.logger.Warn("request failed, giving up",
				"symbol", symbol,
				"attempt", attempt,
				"max_attempts", c.maxRetries,
				"error", err,
			)
			break
		}

		wait := c.Backoff(attempt)
		c.logger.Warn("request failed, retrying",
			"symbol", symbol,
			"attempt", attempt,
			"max_attempts", c.maxRetries,
			"backoff", wait,
			"error", err,
		)

		if err := c.sleep(ctx, wait); err != nil {
			return Response{}, err
		}
	}

	return Response{}, &RetryError{Attempts: c.maxRetries, Last: lastErr}
}
