package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAuthedClient returns a client pointed at server with a token already set
func newAuthedClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	client, err := NewClient(Config{ServerURL: server.URL, ClientID: "test-client"})
	require.NoError(t, err)
	client.SetToken("test-token")
	return client
}

// writeJSON writes a JSON response in a mock handler
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestNewClient(t *testing.T) {
	t.Run("valid_config", func(t *testing.T) {
		client, err := NewClient(Config{
			ServerURL: "http://localhost:8080",
			ClientID:  "test-client",
		})
		require.NoError(t, err)
		assert.NotNil(t, client)
		assert.Equal(t, "test-client", client.config.ClientID)
		assert.Equal(t, 30*time.Second, client.config.Timeout)
		assert.False(t, client.IsAuthenticated())
	})

	t.Run("missing_server_url", func(t *testing.T) {
		client, err := NewClient(Config{ClientID: "test-client"})
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "ServerURL is required")
	})

	t.Run("missing_client_id", func(t *testing.T) {
		client, err := NewClient(Config{ServerURL: "http://localhost:8080"})
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "ClientID is required")
	})

	t.Run("invalid_server_url", func(t *testing.T) {
		client, err := NewClient(Config{ServerURL: "://invalid-url", ClientID: "test-client"})
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "invalid ServerURL")
	})
}

func TestClient_Authenticate(t *testing.T) {
	t.Run("successful_authentication", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var authReq map[string]string
			if assert.NoError(t, json.NewDecoder(r.Body).Decode(&authReq)) {
				assert.Equal(t, "admin", authReq["clientId"])
			}

			writeJSON(w, http.StatusOK, AuthResponse{
				Token:     "jwt-token",
				ClientID:  "admin",
				IsAdmin:   true,
				ExpiresAt: time.Now().Add(time.Hour),
			})
		}))
		defer server.Close()

		client, err := NewClient(Config{ServerURL: server.URL, ClientID: "admin"})
		require.NoError(t, err)

		resp, err := client.Authenticate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "jwt-token", resp.Token)
		assert.True(t, resp.IsAdmin)
		assert.True(t, client.IsAuthenticated())
		assert.Equal(t, "jwt-token", client.GetToken())
	})

	t.Run("authentication_failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Bad Request", Message: "clientId is required", Code: 400})
		}))
		defer server.Close()

		client, err := NewClient(Config{ServerURL: server.URL, ClientID: "x"})
		require.NoError(t, err)

		_, err = client.Authenticate(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API error (400): clientId is required")
		assert.False(t, client.IsAuthenticated())
	})
}

func TestClient_RequiresAuthentication(t *testing.T) {
	client, err := NewClient(Config{ServerURL: "http://localhost:8080", ClientID: "test-client"})
	require.NoError(t, err)

	_, err = client.Append(context.Background(), "Left Click")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = client.Drain(context.Background(), DrainOptions{NonBlocking: true})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = client.Stream(context.Background(), StreamConfig{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestClient_Append(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/events", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req AppendRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			assert.Equal(t, "Left Click", req.Event)
		}

		writeJSON(w, http.StatusAccepted, AppendResponse{Status: "stored", Bytes: 11, Timestamp: time.Now()})
	}))
	defer server.Close()

	resp, err := newAuthedClient(t, server).Append(context.Background(), "Left Click")
	require.NoError(t, err)
	assert.True(t, resp.Stored())
	assert.Equal(t, 11, resp.Bytes)
}

func TestClient_Drain(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/v1/events", r.URL.Path)
			assert.Equal(t, "true", r.URL.Query().Get("nonblock"))
			assert.Equal(t, "64", r.URL.Query().Get("max"))

			writeJSON(w, http.StatusOK, DrainResponse{Data: "A\nB\n", Records: []string{"A", "B"}, Bytes: 4})
		}))
		defer server.Close()

		resp, err := newAuthedClient(t, server).Drain(context.Background(), DrainOptions{NonBlocking: true, Max: 64})
		require.NoError(t, err)
		assert.Equal(t, "A\nB\n", resp.Data)
		assert.Equal(t, []string{"A", "B"}, resp.Records)
	})

	t.Run("blocking_sends_no_params", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.URL.RawQuery)
			writeJSON(w, http.StatusOK, DrainResponse{Data: "A\n", Records: []string{"A"}, Bytes: 2})
		}))
		defer server.Close()

		resp, err := newAuthedClient(t, server).Drain(context.Background(), DrainOptions{})
		require.NoError(t, err)
		assert.Equal(t, "A\n", resp.Data)
	})

	t.Run("would_block", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		_, err := newAuthedClient(t, server).Drain(context.Background(), DrainOptions{NonBlocking: true})
		assert.ErrorIs(t, err, eventbuf.ErrWouldBlock)
	})

	t.Run("short_buffer", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request Entity Too Large", Message: "event buffer: destination too small", Code: 413})
		}))
		defer server.Close()

		_, err := newAuthedClient(t, server).Drain(context.Background(), DrainOptions{Max: 4})
		assert.ErrorIs(t, err, eventbuf.ErrShortBuffer)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.StatusCode)
	})

	t.Run("interrupted", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}))
		defer server.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := newAuthedClient(t, server).Drain(ctx, DrainOptions{})
		assert.ErrorIs(t, err, eventbuf.ErrInterrupted)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestClient_AdminCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/admin/reset":
			assert.Equal(t, http.MethodPost, r.Method)
			writeJSON(w, http.StatusOK, ControlResponse{Command: "clear", Code: 0x4d01, Status: "ok"})
		case "/api/v1/admin/control":
			var req map[string]interface{}
			if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
				return
			}
			assert.IsType(t, "", req["command"], "commands travel as strings")
			if req["command"] == "clear" {
				writeJSON(w, http.StatusOK, ControlResponse{Command: "clear", Code: 0x4d01, Status: "ok"})
				return
			}
			writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "Not Implemented", Message: "command 0x4d02: eventbuf: unsupported operation", Code: 501})
		case "/api/v1/admin/stats":
			writeJSON(w, http.StatusOK, StatsResponse{Capacity: 256, Length: 11, HasData: true, Policy: "evict-oldest", Appended: 1})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newAuthedClient(t, server)
	ctx := context.Background()

	resp, err := client.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "clear", resp.Command)

	resp, err = client.Control(ctx, "clear")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x4d01), resp.Code)

	_, err = client.Control(ctx, "0x4d02")
	assert.ErrorIs(t, err, eventbuf.ErrUnsupportedCommand)

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 256, stats.Capacity)
	assert.Equal(t, 11, stats.Length)
	assert.Equal(t, "evict-oldest", stats.Policy)
}

func TestClient_GetHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/health", r.URL.Path)
			assert.Empty(t, r.Header.Get("Authorization"), "health must not need a token")
			writeJSON(w, http.StatusOK, HealthResponse{Healthy: true, NodeID: "inputlog-test", Capacity: 256})
		}))
		defer server.Close()

		client, err := NewClient(Config{ServerURL: server.URL, ClientID: "test-client"})
		require.NoError(t, err)

		health, err := client.GetHealth(context.Background())
		require.NoError(t, err)
		assert.True(t, health.Healthy)
		assert.Equal(t, "inputlog-test", health.NodeID)
	})

	t.Run("unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Healthy: false, Message: "ingestor failed"})
		}))
		defer server.Close()

		client, err := NewClient(Config{ServerURL: server.URL, ClientID: "test-client"})
		require.NoError(t, err)

		_, err = client.GetHealth(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API error (503)")
	})
}

func TestAPIError_Unwrap(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNoContent, eventbuf.ErrWouldBlock},
		{http.StatusRequestEntityTooLarge, eventbuf.ErrShortBuffer},
		{http.StatusNotImplemented, eventbuf.ErrUnsupportedCommand},
		{http.StatusServiceUnavailable, eventbuf.ErrClosed},
		{http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status}
		assert.Equal(t, tt.want, err.Unwrap(), "status %d", tt.status)
	}

	assert.Equal(t, "API error (400): Bad Request", (&APIError{StatusCode: 400}).Error())
}
