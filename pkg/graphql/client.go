// Package graphql provides the low-level GraphQL HTTP transport.
// It executes a single operation and returns the status code plus the
// decoded response body. Retry, throttling, and pagination live above it.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Response is the outcome of one GraphQL operation. Non-2xx statuses are
// returned here, not as errors, so callers can classify them.
type Response struct {
	StatusCode int
	Body       map[string]interface{}
}

// Queryer is the interface for objects that can execute a GraphQL operation.
type Queryer interface {
	Execute(ctx context.Context, query string, variables map[string]interface{}) (*Response, error)
}

// QueryerFunc adapts a plain function to the Queryer interface. Useful for tests.
type QueryerFunc func(ctx context.Context, query string, variables map[string]interface{}) (*Response, error)

// Execute invokes the wrapped function.
func (f QueryerFunc) Execute(ctx context.Context, query string, variables map[string]interface{}) (*Response, error) {
	return f(ctx, query, variables)
}

// Config holds the transport configuration.
type Config struct {
	// Endpoint is the full GraphQL URL, e.g. "https://shop.example.com/admin/api/graphql.json".
	Endpoint string

	// AccessToken is sent as X-Shopify-Access-Token when non-empty.
	AccessToken string

	// Timeout bounds one request/response cycle.
	Timeout time.Duration
}

// DefaultConfig returns a transport configuration with sane defaults.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint: endpoint,
		Timeout:  5 * time.Second,
	}
}

// Client sends GraphQL operations to a fixed endpoint over HTTP(S).
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

var _ Queryer = (*Client)(nil)

// NewClient creates a transport client for the given configuration.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
		logger:     logger,
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Execute posts one query with its variables and decodes the JSON response.
// Connection, write, read, and body-decoding failures are returned as errors;
// a non-2xx HTTP status is not an error and is reported via StatusCode.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]interface{}) (*Response, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.AccessToken != "" {
		req.Header.Set("X-Shopify-Access-Token", c.config.AccessToken)
	}

	c.logger.Debug().
		Str("endpoint", c.config.Endpoint).
		Int("payload_bytes", len(payload)).
		Msg("Executing GraphQL request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	body := map[string]interface{}{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("response body was not valid json: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}
