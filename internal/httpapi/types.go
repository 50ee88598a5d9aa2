package httpapi

import (
	"encoding/json"
	"time"
)

// Request/Response types for the HTTP API

// AuthRequest represents a login request
type AuthRequest struct {
	ClientID string `json:"clientId"`
}

// AuthResponse represents a login response
type AuthResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"clientId"`
	IsAdmin   bool      `json:"isAdmin"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AppendRequest carries one event description to append
type AppendRequest struct {
	Event string `json:"event"`
}

// AppendResponse reports what the buffer did with an appended record. Status
// is "stored", "rejected" or "oversized"; Bytes is zero unless it was stored.
type AppendResponse struct {
	Status    string    `json:"status"`
	Bytes     int       `json:"bytes"`
	Evicted   int       `json:"evicted"`
	Timestamp time.Time `json:"timestamp"`
}

// DrainResponse holds one drained block
type DrainResponse struct {
	Data    string   `json:"data"`
	Records []string `json:"records"`
	Bytes   int      `json:"bytes"`
}

// ControlRequest names an administrative command, either as a name
// ("clear") or as a number
type ControlRequest struct {
	Command json.RawMessage `json:"command"`
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

// StreamMessage is one drained block pushed over SSE or WebSocket
type StreamMessage struct {
	Sequence  uint64    `json:"sequence"`
	Records   []string  `json:"records"`
	Bytes     int       `json:"bytes"`
	Timestamp time.Time `json:"timestamp"`
}
