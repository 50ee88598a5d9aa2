package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rmacdonaldsmith/inputlog/internal/daemon"
	"github.com/rmacdonaldsmith/inputlog/internal/logging"
)

// TestServerSetup holds common test dependencies
type TestServerSetup struct {
	Node   *daemon.Node
	Server *Server
	Auth   *JWTAuth
	HTTP   *httptest.Server
}

// NewTestServerSetup creates a node with a small buffer behind a live test
// HTTP server
func NewTestServerSetup(t *testing.T) *TestServerSetup {
	t.Helper()

	config := daemon.NewConfig("test-node")
	config.Buffer.Capacity = 64
	return NewTestServerSetupWithConfig(t, config, Config{SecretKey: "test-secret-key"})
}

// NewTestServerSetupWithConfig is NewTestServerSetup with explicit configs
func NewTestServerSetupWithConfig(t *testing.T, nodeConfig *daemon.Config, serverConfig Config) *TestServerSetup {
	t.Helper()

	nodeConfig.WithLogger(logging.Discard())
	node, err := daemon.NewNode(nodeConfig)
	if err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}
	if err := node.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start node: %v", err)
	}

	if serverConfig.Logger == nil {
		serverConfig.Logger = logging.Discard()
	}
	if serverConfig.Keepalive == 0 {
		serverConfig.Keepalive = 50 * time.Millisecond
	}
	server := NewServer(node, serverConfig)

	setup := &TestServerSetup{
		Node:   node,
		Server: server,
		Auth:   server.jwtAuth,
		HTTP:   httptest.NewServer(server.Handler()),
	}
	t.Cleanup(setup.Close)
	return setup
}

// Close cleans up test resources
func (setup *TestServerSetup) Close() {
	// Closing the node first releases blocked consumers so the server can stop
	setup.Node.Close()
	setup.HTTP.Close()
}

// GenerateTestToken creates a JWT token for testing
func (setup *TestServerSetup) GenerateTestToken(t *testing.T, clientID string, isAdmin bool) string {
	t.Helper()

	token, _, err := setup.Auth.GenerateToken(clientID, isAdmin)
	if err != nil {
		t.Fatalf("Failed to generate test token: %v", err)
	}
	return token
}

// Do sends a request to the test server. A non-nil body is sent as JSON.
func (setup *TestServerSetup) Do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, setup.HTTP.URL+path, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := setup.HTTP.Client().Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// DecodeJSON decodes a response body into v
func DecodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}
