// Package feeds provides thin read-only proxies for the news feed and stock
// dashboard data sources. Payloads pass through untouched; only transport
// failures are normalized.
package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("feed endpoint not configured")

// Client wraps one upstream endpoint.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewNewsClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return newClient("news", baseURL, timeout, logger)
}

func NewStockClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return newClient("stocks", baseURL, timeout, logger)
}

func newClient(name, baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Fetch forwards the query parameters to the upstream and returns its JSON
// body verbatim.
func (c *Client) Fetch(ctx context.Context, params url.Values) (json.RawMessage, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	requestURL := c.baseURL
	if encoded := params.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", c.name, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("feed request failed", zap.String("feed", c.name), zap.Error(err))
		return nil, fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("feed returned non-success status",
			zap.String("feed", c.name), zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%s upstream returned status %d", c.name, resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s upstream returned malformed JSON", c.name)
	}

	return json.RawMessage(body), nil
}
