// Package httpclient is a Go client for the inputlog HTTP API.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

// ErrNotAuthenticated is returned by calls made before Authenticate
var ErrNotAuthenticated = errors.New("client not authenticated - call Authenticate() first")

// Client provides HTTP client for the inputlog API
type Client struct {
	config     Config
	httpClient *http.Client
	// longPoll has no timeout; blocking drains and streams use it
	longPoll *http.Client
	baseURL  *url.URL

	mu    sync.RWMutex
	token string
}

// NewClient creates a new inputlog HTTP client
func NewClient(config Config) (*Client, error) {
	config.SetDefaults()

	if config.ServerURL == "" {
		return nil, fmt.Errorf("ServerURL is required")
	}
	if config.ClientID == "" {
		return nil, fmt.Errorf("ClientID is required")
	}

	baseURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		longPoll:   &http.Client{},
		baseURL:    baseURL,
	}, nil
}

// Authenticate logs in with the configured client id and stores the token
func (c *Client) Authenticate(ctx context.Context) (*AuthResponse, error) {
	authReq := map[string]string{
		"clientId": c.config.ClientID,
	}

	var authResp AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", nil, authReq, &authResp, false); err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	c.SetToken(authResp.Token)
	return &authResp, nil
}

// Append sends one event to the buffer
func (c *Client) Append(ctx context.Context, event string) (*AppendResponse, error) {
	var resp AppendResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/events", nil, AppendRequest{Event: event}, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}
	return &resp, nil
}

// DrainOptions tune a drain
type DrainOptions struct {
	// NonBlocking returns eventbuf.ErrWouldBlock instead of waiting
	NonBlocking bool
	// Max caps the block size in bytes; a larger buffer yields
	// eventbuf.ErrShortBuffer and is left intact. Zero means no cap.
	Max int
}

// Drain takes the whole buffer. A blocking drain waits until data arrives
// or ctx is done.
func (c *Client) Drain(ctx context.Context, opts DrainOptions) (*DrainResponse, error) {
	query := url.Values{}
	if opts.NonBlocking {
		query.Set("nonblock", "true")
	}
	if opts.Max > 0 {
		query.Set("max", strconv.Itoa(opts.Max))
	}

	var resp DrainResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/events", query, nil, &resp, true); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", eventbuf.ErrInterrupted, ctx.Err())
		}
		return nil, fmt.Errorf("failed to drain events: %w", err)
	}
	return &resp, nil
}

// Reset empties the buffer (admin only)
func (c *Client) Reset(ctx context.Context) (*ControlResponse, error) {
	var resp ControlResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/admin/reset", nil, nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to reset buffer: %w", err)
	}
	return &resp, nil
}

// Control sends a control command (admin only). command is a name ("clear")
// or a number in Go literal syntax ("0x4d01", "19713").
func (c *Client) Control(ctx context.Context, command string) (*ControlResponse, error) {
	var resp ControlResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/admin/control", nil, ControlRequest{Command: command}, &resp, true); err != nil {
		return nil, fmt.Errorf("control command failed: %w", err)
	}
	return &resp, nil
}

// Stats returns buffer counters (admin only)
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/admin/stats", nil, nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &resp, nil
}

// GetHealth returns the health status of the server
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, nil, &resp, false); err != nil {
		return nil, fmt.Errorf("failed to get health status: %w", err)
	}
	return &resp, nil
}

// doRequest performs an HTTP request with query parameters and optional authentication
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, reqBody interface{}, respBody interface{}, requireAuth bool) error {
	token := c.GetToken()
	if requireAuth && token == "" {
		return ErrNotAuthenticated
	}

	u := &url.URL{Path: path}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	fullURL := c.baseURL.ResolveReference(u)

	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requireAuth {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpClient := c.httpClient
	if method == http.MethodGet && path == "/api/v1/events" && query.Get("nonblock") == "" {
		httpClient = c.longPoll
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp ErrorResponse
		if json.Unmarshal(bodyBytes, &errResp) == nil && errResp.Message != "" {
			apiErr.Message = errResp.Message
		} else if len(bodyBytes) > 0 {
			apiErr.Message = string(bodyBytes)
		}
		return apiErr
	}

	if respBody != nil {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// IsAuthenticated returns whether the client has a token
func (c *Client) IsAuthenticated() bool {
	return c.GetToken() != ""
}

// GetToken returns the current authentication token
func (c *Client) GetToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken sets the authentication token (useful for testing or token reuse)
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}
