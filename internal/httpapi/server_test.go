package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/inputlog/internal/control"
	"github.com/rmacdonaldsmith/inputlog/internal/daemon"
	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

func TestLogin(t *testing.T) {
	setup := NewTestServerSetup(t)

	t.Run("regular_client", func(t *testing.T) {
		resp := setup.Do(t, http.MethodPost, "/api/v1/auth/login", "", AuthRequest{ClientID: "reader"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var auth AuthResponse
		DecodeJSON(t, resp, &auth)
		assert.Equal(t, "reader", auth.ClientID)
		assert.False(t, auth.IsAdmin)
		assert.NotEmpty(t, auth.Token)
		assert.True(t, auth.ExpiresAt.After(time.Now()))
	})

	t.Run("admin_client", func(t *testing.T) {
		resp := setup.Do(t, http.MethodPost, "/api/v1/auth/login", "", AuthRequest{ClientID: AdminClientID})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var auth AuthResponse
		DecodeJSON(t, resp, &auth)
		assert.True(t, auth.IsAdmin)
	})

	t.Run("invalid_requests", func(t *testing.T) {
		resp := setup.Do(t, http.MethodPost, "/api/v1/auth/login", "", AuthRequest{ClientID: "x"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		req, err := http.NewRequest(http.MethodPost, setup.HTTP.URL+"/api/v1/auth/login", strings.NewReader(`{"clientId":"reader"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "text/plain")
		raw, err := setup.HTTP.Client().Do(req)
		require.NoError(t, err)
		defer raw.Body.Close()
		assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

		resp = setup.Do(t, http.MethodGet, "/api/v1/auth/login", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestAppendAndDrain(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "mouse", false)

	resp := setup.Do(t, http.MethodPost, "/api/v1/events", token, AppendRequest{Event: "Left Click"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var appended AppendResponse
	DecodeJSON(t, resp, &appended)
	assert.Equal(t, 11, appended.Bytes)

	setup.Do(t, http.MethodPost, "/api/v1/events", token, AppendRequest{Event: "Right Click"})

	resp = setup.Do(t, http.MethodGet, "/api/v1/events?nonblock=true", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var drained DrainResponse
	DecodeJSON(t, resp, &drained)
	assert.Equal(t, "Left Click\nRight Click\n", drained.Data)
	assert.Equal(t, []string{"Left Click", "Right Click"}, drained.Records)
	assert.Equal(t, 23, drained.Bytes)

	// Empty now
	resp = setup.Do(t, http.MethodGet, "/api/v1/events?nonblock=true", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAppend_Validation(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "mouse", false)

	resp := setup.Do(t, http.MethodPost, "/api/v1/events", token, AppendRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = setup.Do(t, http.MethodPost, "/api/v1/events", "", AppendRequest{Event: "Left Click"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = setup.Do(t, http.MethodPost, "/api/v1/events", "not-a-token", AppendRequest{Event: "Left Click"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = setup.Do(t, http.MethodDelete, "/api/v1/events", token, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAppend_ReportsOutcome(t *testing.T) {
	config := daemon.NewConfig("test-node")
	config.Buffer.Capacity = 16
	config.Buffer.Policy = eventbuf.PolicyRejectNewest
	setup := NewTestServerSetupWithConfig(t, config, Config{SecretKey: "test-secret-key"})
	token := setup.GenerateTestToken(t, "mouse", false)

	post := func(event string) (*http.Response, AppendResponse) {
		resp := setup.Do(t, http.MethodPost, "/api/v1/events", token, AppendRequest{Event: event})
		var body AppendResponse
		if resp.StatusCode == http.StatusAccepted {
			DecodeJSON(t, resp, &body)
		}
		return resp, body
	}

	resp, body := post("Left Click")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "stored", body.Status)
	assert.Equal(t, 11, body.Bytes)

	resp, body = post("Right Click")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "rejected", body.Status)
	assert.Zero(t, body.Bytes)

	resp, body = post(strings.Repeat("x", 16))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "oversized", body.Status)
	assert.Zero(t, body.Bytes)

	stats := setup.Node.Store().Stats()
	assert.Equal(t, uint64(1), stats.Appended)
	assert.Equal(t, uint64(1), stats.Rejected)
	assert.Equal(t, uint64(1), stats.Oversized)

	setup.Node.Close()
	resp, _ = post("Middle Click")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAppend_ReportsEvictions(t *testing.T) {
	config := daemon.NewConfig("test-node")
	config.Buffer.Capacity = 24
	setup := NewTestServerSetupWithConfig(t, config, Config{SecretKey: "test-secret-key"})
	token := setup.GenerateTestToken(t, "mouse", false)

	setup.Node.Store().Append("Left Click")
	setup.Node.Store().Append("Right Click")

	resp := setup.Do(t, http.MethodPost, "/api/v1/events", token, AppendRequest{Event: "Middle Click"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var body AppendResponse
	DecodeJSON(t, resp, &body)
	assert.Equal(t, "stored", body.Status)
	assert.Equal(t, 2, body.Evicted)
}

func TestDrain_CallerGoneRestoresBlock(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "reader", false)
	setup.Node.Store().Append("Left Click")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	setup.Server.Handler().ServeHTTP(rec, req)

	assert.Zero(t, rec.Body.Len())
	data, err := setup.Node.Store().Drain(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "Left Click\n", data)
}

func TestDrain_ShortBuffer(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "mouse", false)
	setup.Node.Store().Append("Left Click")
	setup.Node.Store().Append("Right Click")

	resp := setup.Do(t, http.MethodGet, "/api/v1/events?nonblock=true&max=10", token, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	var errResp ErrorResponse
	DecodeJSON(t, resp, &errResp)
	assert.Contains(t, errResp.Message, "23 bytes pending")

	// Nothing was consumed
	resp = setup.Do(t, http.MethodGet, "/api/v1/events?nonblock=true&max=23", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var drained DrainResponse
	DecodeJSON(t, resp, &drained)
	assert.Equal(t, "Left Click\nRight Click\n", drained.Data)
}

func TestDrain_InvalidParameters(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "mouse", false)

	resp := setup.Do(t, http.MethodGet, "/api/v1/events?nonblock=maybe", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = setup.Do(t, http.MethodGet, "/api/v1/events?max=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDrain_BlocksUntilAppend(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "mouse", false)

	result := make(chan DrainResponse, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodGet, setup.HTTP.URL+"/api/v1/events", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := setup.HTTP.Client().Do(req)
		if err != nil {
			return
		}
		defer resp.Body.Close()
		var drained DrainResponse
		json.NewDecoder(resp.Body).Decode(&drained)
		result <- drained
	}()

	time.Sleep(30 * time.Millisecond)
	select {
	case <-result:
		t.Fatal("blocking drain returned before any append")
	default:
	}

	setup.Node.Store().Append("Middle Click")

	select {
	case drained := <-result:
		assert.Equal(t, "Middle Click\n", drained.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("blocking drain was not woken")
	}
}

func TestDrain_ClientCancelLeavesBufferIntact(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "mouse", false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, setup.HTTP.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = setup.HTTP.Client().Do(req)
	require.Error(t, err)

	// Allow the server side to observe the cancellation
	time.Sleep(100 * time.Millisecond)
	setup.Node.Store().Append("Left Click")

	resp := setup.Do(t, http.MethodGet, "/api/v1/events?nonblock=true", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var drained DrainResponse
	DecodeJSON(t, resp, &drained)
	assert.Equal(t, "Left Click\n", drained.Data)
}

func TestNoAuthMode(t *testing.T) {
	config := daemon.NewConfig("test-node")
	setup := NewTestServerSetupWithConfig(t, config, Config{SecretKey: "s", NoAuth: true})

	resp := setup.Do(t, http.MethodPost, "/api/v1/events", "", AppendRequest{Event: "Left Click"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// Admin endpoints are never bypassed
	resp = setup.Do(t, http.MethodPost, "/api/v1/admin/reset", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminEndpoints(t *testing.T) {
	setup := NewTestServerSetup(t)
	admin := setup.GenerateTestToken(t, AdminClientID, true)
	user := setup.GenerateTestToken(t, "mouse", false)

	t.Run("requires_admin", func(t *testing.T) {
		resp := setup.Do(t, http.MethodGet, "/api/v1/admin/stats", user, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = setup.Do(t, http.MethodGet, "/api/v1/admin/stats", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("stats", func(t *testing.T) {
		setup.Node.Store().Append("Left Click")

		resp := setup.Do(t, http.MethodGet, "/api/v1/admin/stats", admin, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var stats StatsResponse
		DecodeJSON(t, resp, &stats)
		assert.Equal(t, 64, stats.Capacity)
		assert.Equal(t, 11, stats.Length)
		assert.True(t, stats.HasData)
		assert.Equal(t, "evict-oldest", stats.Policy)
		assert.Equal(t, uint64(1), stats.Appended)
	})

	t.Run("reset", func(t *testing.T) {
		setup.Node.Store().Append("Right Click")

		resp := setup.Do(t, http.MethodPost, "/api/v1/admin/reset", admin, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 0, setup.Node.Store().Stats().Length)
	})

	t.Run("control_clear_by_name_and_number", func(t *testing.T) {
		for _, command := range []interface{}{"clear", "0x4d01", uint32(control.CommandClear)} {
			setup.Node.Store().Append("Left Click")

			resp := setup.Do(t, http.MethodPost, "/api/v1/admin/control", admin, map[string]interface{}{"command": command})
			require.Equal(t, http.StatusOK, resp.StatusCode, "command %v", command)
			var ack ControlResponse
			DecodeJSON(t, resp, &ack)
			assert.Equal(t, "clear", ack.Command)
			assert.Equal(t, uint32(0x4d01), ack.Code)
			assert.Equal(t, 0, setup.Node.Store().Stats().Length)
		}
	})

	t.Run("control_unsupported", func(t *testing.T) {
		setup.Node.Store().Append("Left Click")

		resp := setup.Do(t, http.MethodPost, "/api/v1/admin/control", admin, map[string]interface{}{"command": 0x4d02})
		require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
		var errResp ErrorResponse
		DecodeJSON(t, resp, &errResp)
		assert.Contains(t, errResp.Message, "unsupported operation")

		// Untouched
		assert.Equal(t, 11, setup.Node.Store().Stats().Length)
	})

	t.Run("control_invalid", func(t *testing.T) {
		resp := setup.Do(t, http.MethodPost, "/api/v1/admin/control", admin, map[string]interface{}{"command": "explode"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = setup.Do(t, http.MethodPost, "/api/v1/admin/control", admin, map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHealthAndRoot(t *testing.T) {
	setup := NewTestServerSetup(t)

	resp := setup.Do(t, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health HealthResponse
	DecodeJSON(t, resp, &health)
	assert.True(t, health.Healthy)
	assert.Equal(t, "test-node", health.NodeID)
	assert.Equal(t, 64, health.Capacity)

	resp = setup.Do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info map[string]interface{}
	DecodeJSON(t, resp, &info)
	assert.Equal(t, "inputlog HTTP API", info["service"])

	resp = setup.Do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	setup.Node.Close()
	resp = setup.Do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMiddleware_RequestIDAndCORS(t *testing.T) {
	setup := NewTestServerSetup(t)

	resp := setup.Do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodGet, setup.HTTP.URL+"/api/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "trace-123")
	raw, err := setup.HTTP.Client().Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, "trace-123", raw.Header.Get(RequestIDHeader))

	resp = setup.Do(t, http.MethodOptions, "/api/v1/events", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMiddleware_Recovery(t *testing.T) {
	m := NewMiddleware(NewJWTAuth("s"), false, nil)
	handler := m.Recovery(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
