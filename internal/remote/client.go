// Package remote talks to a trendcast content endpoint.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dgnsrekt/trendcast/internal/trend"
)

// SecretHeader carries the shared refresh secret.
const SecretHeader = "X-Refresh-Secret"

// ErrNotConfigured is returned when the client has no base URL.
var ErrNotConfigured = errors.New("remote endpoint not configured")

// TrendingResponse is the body of GET /trending.
type TrendingResponse struct {
	Tweets []trend.Item `json:"tweets"`
	Cached bool         `json:"cached"`
	Stale  bool         `json:"stale,omitempty"`
	Empty  bool         `json:"empty,omitempty"`

	// FellBack is set when the interest filter matched nothing and the
	// unfiltered batch was returned instead.
	FellBack bool `json:"fellBack,omitempty"`
}

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets the endpoint base URL, e.g. http://localhost:8787.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithSecret sets the shared secret sent with refresh requests.
func WithSecret(secret string) ClientOption {
	return func(c *Client) {
		c.secret = secret
	}
}

// Client calls the content endpoint.
type Client struct {
	httpClient HTTPClient
	baseURL    string
	secret     string
}

// NewClient creates a new endpoint client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Trending fetches the current feed, scoped to interests.
func (c *Client) Trending(ctx context.Context, interests []string) (*TrendingResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	u := c.baseURL + "/trending"
	if len(interests) > 0 {
		u += "?" + url.Values{"interests": {strings.Join(interests, ",")}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trending endpoint returned HTTP %d", resp.StatusCode)
	}

	var out TrendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode trending response: %w", err)
	}
	return &out, nil
}

// Refresh asks the endpoint to regenerate its cache. The endpoint answers
// before the work finishes.
func (c *Client) Refresh(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/refresh", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.secret != "" {
		req.Header.Set(SecretHeader, c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("refresh endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}
