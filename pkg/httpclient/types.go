package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

// Config holds client configuration
type Config struct {
	// ServerURL is the base URL of the inputlog HTTP API (e.g., "http://localhost:8080")
	ServerURL string

	// ClientID is the identifier for this client; "admin" gets admin rights
	ClientID string

	// Timeout for HTTP requests. Blocking drains and streams are not bound
	// by it; use their context instead.
	Timeout time.Duration
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// AuthResponse represents the response from authentication
type AuthResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"clientId"`
	IsAdmin   bool      `json:"isAdmin"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AppendRequest carries one event description
type AppendRequest struct {
	Event string `json:"event"`
}

// AppendResponse reports what the buffer did with an appended record
type AppendResponse struct {
	Status    string    `json:"status"` // stored, rejected or oversized
	Bytes     int       `json:"bytes"`
	Evicted   int       `json:"evicted"`
	Timestamp time.Time `json:"timestamp"`
}

// Stored reports whether the record made it into the buffer
func (r *AppendResponse) Stored() bool {
	return r.Status == "stored"
}

// DrainResponse holds one drained block
type DrainResponse struct {
	Data    string   `json:"data"`
	Records []string `json:"records"`
	Bytes   int      `json:"bytes"`
}

// ControlRequest names a control command by name or number literal
type ControlRequest struct {
	Command string `json:"command"`
}

// ControlResponse acknowledges a control command
type ControlResponse struct {
	Command string `json:"command"`
	Code    uint32 `json:"code"`
	Status  string `json:"status"`
}

// StatsResponse is the admin view of the buffer
type StatsResponse struct {
	Capacity  int    `json:"capacity"`
	Length    int    `json:"length"`
	HasData   bool   `json:"hasData"`
	Policy    string `json:"policy"`
	Appended  uint64 `json:"appended"`
	Evicted   uint64 `json:"evicted"`
	Rejected  uint64 `json:"rejected"`
	Oversized uint64 `json:"oversized"`
	Drains    uint64 `json:"drains"`
	Resets    uint64 `json:"resets"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Healthy   bool   `json:"healthy"`
	NodeID    string `json:"nodeId"`
	Ingesting bool   `json:"ingesting"`
	Ingested  uint64 `json:"ingested"`
	Ignored   uint64 `json:"ignored"`
	Buffered  int    `json:"buffered"`
	Capacity  int    `json:"capacity"`
	Message   string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// StreamMessage is one drained block received from a stream
type StreamMessage struct {
	Sequence  uint64    `json:"sequence"`
	Records   []string  `json:"records"`
	Bytes     int       `json:"bytes"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError is a non-success response from the server. It unwraps to the
// matching eventbuf sentinel where one exists.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (%d): %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Unwrap maps status codes to buffer errors
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNoContent:
		return eventbuf.ErrWouldBlock
	case http.StatusRequestEntityTooLarge:
		return eventbuf.ErrShortBuffer
	case http.StatusNotImplemented:
		return eventbuf.ErrUnsupportedCommand
	case http.StatusServiceUnavailable:
		return eventbuf.ErrClosed
	default:
		return nil
	}
}
