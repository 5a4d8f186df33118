// Package webhook is the boundary to the external workflow automation
// endpoints. Every outbound chat, research, and report request goes through
// the Client here, and every transport outcome is normalized into a Result
// so callers never see a raw HTTP error.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pulsedesk/pulsedesk/internal/ident"
)

// Endpoint type values sent to the workflows.
const (
	typeChat     = "chat"
	typeResearch = "research"
	typeReport   = "report"
)

// Result is the normalized outcome of one webhook call.
type Result struct {
	Success bool
	Data    json.RawMessage
	Error   string
}

type Config struct {
	ChatURL     string
	ResearchURL string
	ReportURL   string
	Timeout     time.Duration
}

// Client sends workflow requests. It is stateless per call and makes exactly
// one attempt; retries are a caller concern.
type Client struct {
	cfg        Config
	httpClient *http.Client
	ids        ident.Generator
	logger     *zap.Logger
}

func NewClient(cfg Config, ids ident.Generator, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		ids:        ids,
		logger:     logger,
	}
}

func (c *Client) SendPlain(ctx context.Context, message, sessionID string) Result {
	return c.send(ctx, c.cfg.ChatURL, typeChat, message, sessionID)
}

func (c *Client) SendResearch(ctx context.Context, message, sessionID string) Result {
	return c.send(ctx, c.cfg.ResearchURL, typeResearch, message, sessionID)
}

func (c *Client) SendReport(ctx context.Context, message, sessionID string) Result {
	return c.send(ctx, c.cfg.ReportURL, typeReport, message, sessionID)
}

func (c *Client) send(ctx context.Context, endpoint, requestType, message, sessionID string) Result {
	message = strings.TrimSpace(message)
	if message == "" {
		return failure("message is empty")
	}
	if endpoint == "" {
		return failure(fmt.Sprintf("no %s webhook endpoint configured", requestType))
	}
	if sessionID == "" {
		// Every call carries an identifier so the workflow can correlate turns.
		sessionID = c.ids.SessionID()
	}

	query := url.Values{}
	query.Set("message", message)
	query.Set("sessionId", sessionID)
	query.Set("type", requestType)
	requestURL := endpoint + "?" + query.Encode()

	c.logger.Debug("webhook request",
		zap.String("type", requestType),
		zap.String("session_id", sessionID),
		zap.Int("message_len", len(message)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return c.failed(requestType, sessionID, fmt.Sprintf("failed to build request: %v", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.failed(requestType, sessionID, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.failed(requestType, sessionID, fmt.Sprintf("failed to read response body: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.failed(requestType, sessionID,
			fmt.Sprintf("unexpected status %d: %.200s", resp.StatusCode, body))
	}

	if !json.Valid(body) {
		return c.failed(requestType, sessionID, "malformed response body")
	}

	c.logger.Debug("webhook response",
		zap.String("type", requestType),
		zap.String("session_id", sessionID),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_len", len(body)))

	return Result{Success: true, Data: json.RawMessage(body)}
}

func (c *Client) failed(requestType, sessionID, reason string) Result {
	c.logger.Warn("webhook call failed",
		zap.String("type", requestType),
		zap.String("session_id", sessionID),
		zap.String("reason", reason))
	return failure(reason)
}

func failure(reason string) Result {
	return Result{Success: false, Error: reason}
}
