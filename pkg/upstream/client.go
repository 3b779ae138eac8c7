package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ClientConfig configures the upstream client.
type ClientConfig struct {
	// BaseURL is the upstream service root (no trailing slash).
	BaseURL string

	// Timeout is the total request timeout for non-streaming calls.
	// Streaming responses are bounded by the caller's context instead.
	// Default: 60s
	Timeout time.Duration

	// MaxIdleConns bounds the connection pool. Default: 100
	MaxIdleConns int

	// MaxIdleConnsPerHost bounds per-host idle connections. Default: 10
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept.
	// Default: 90s
	IdleConnTimeout time.Duration

	// UserAgent is sent on every request. Default: a desktop browser
	// string the upstream accepts.
	UserAgent string
}

// applyDefaults fills zero fields with defaults.
func (c *ClientConfig) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 100
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = 10
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	}
}

// Client is the upstream HTTP client with connection pooling.
type Client struct {
	config ClientConfig

	// streamClient has no overall timeout so long SSE responses are not
	// cut off; cancellation comes from the request context.
	streamClient *http.Client

	// jsonClient carries the configured timeout for short JSON calls.
	jsonClient *http.Client

	logger *slog.Logger
}

// NewClient creates an upstream client.
func NewClient(cfg ClientConfig) *Client {
	cfg.applyDefaults()

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		config:       cfg,
		streamClient: &http.Client{Transport: transport},
		jsonClient:   &http.Client{Transport: transport, Timeout: cfg.Timeout},
		logger:       slog.Default().With("component", "upstream.client"),
	}
}

// setCommonHeaders sets the headers every upstream call carries. The
// cookie is attached only when one is available.
func (c *Client) setCommonHeaders(req *http.Request, token, cookie string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.config.UserAgent)
	if cookie != "" {
		req.Header.Set("Cookie", "ssxmod_itna="+cookie)
	}
}

// ChatCompletions posts a transformed chat body and returns the raw
// streaming response. The caller owns resp.Body and must close it.
//
// Non-2xx responses are classified: 4xx becomes an AuthError carrying
// the verbatim body, everything else an UpstreamError. In both cases
// the response body has been consumed and closed.
func (c *Client) ChatCompletions(ctx context.Context, body *ChatRequest, token, cookie string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := c.config.BaseURL + "/api/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	c.setCommonHeaders(req, token, cookie)

	c.logger.Debug("sending chat request",
		"model", body.Model,
		"messages", len(body.Messages),
	)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: "chat request failed", Cause: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: string(errorBody)}
	}
	return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: string(errorBody)}
}

// Models fetches the upstream model catalog.
func (c *Client) Models(ctx context.Context, token string) ([]CatalogModel, error) {
	url := c.config.BaseURL + "/api/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create models request: %w", err)
	}
	c.setCommonHeaders(req, token, "")

	resp, err := c.jsonClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: "models request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &AuthError{StatusCode: resp.StatusCode, Body: string(errorBody)}
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: string(errorBody)}
	}

	var catalog struct {
		Data []CatalogModel `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return nil, &UpstreamError{Message: "failed to decode model catalog", Cause: err}
	}

	return catalog.Data, nil
}
