package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/inputlog/internal/eventbuf"
	eventbufpkg "github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

func TestNewConfig_Defaults(t *testing.T) {
	config := NewConfig("test-node")

	assert.Equal(t, "test-node", config.NodeID)
	assert.Equal(t, DefaultHTTPListen, config.HTTP.Listen)
	assert.Empty(t, config.GRPC.Listen, "gRPC is opt-in")
	assert.Equal(t, eventbuf.DefaultCapacity, config.Buffer.Capacity)
	assert.Equal(t, eventbufpkg.PolicyEvictOldest, config.Buffer.Policy)
	assert.NotNil(t, config.Logger)
	require.NoError(t, config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	config := &Config{}
	assert.ErrorIs(t, config.Validate(), ErrEmptyNodeID)

	config = &Config{NodeID: "n"}
	assert.ErrorIs(t, config.Validate(), ErrInvalidListenAddress)

	config = NewConfig("n")
	config.Buffer.Capacity = -4
	err := config.Validate()
	assert.ErrorIs(t, err, eventbufpkg.ErrInvalidCapacity)
}

func TestConfig_FluentBuilders(t *testing.T) {
	config := NewConfig("n").
		WithDevice("/dev/input/event3").
		WithGRPCListen(":9999").
		WithHTTP(HTTPConfig{Listen: ":1234", NoAuth: true}).
		WithBuffer(*eventbuf.NewConfig(64).WithPolicy(eventbufpkg.PolicyRejectNewest))

	assert.Equal(t, "/dev/input/event3", config.Device)
	assert.Equal(t, ":9999", config.GRPC.Listen)
	assert.Equal(t, ":1234", config.HTTP.Listen)
	assert.True(t, config.HTTP.NoAuth)
	assert.Equal(t, 64, config.Buffer.Capacity)
	assert.Equal(t, eventbufpkg.PolicyRejectNewest, config.Buffer.Policy)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputlog.yaml")
	yamlData := `
node_id: desk-mouse
device: /dev/input/event5
buffer:
  capacity: 1024
  policy: reject-newest
  disable_nonblocking: true
http:
  listen: ":8181"
  secret_key: s3cret
  no_auth: true
grpc:
  listen: ":9191"
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "desk-mouse", config.NodeID)
	assert.Equal(t, "/dev/input/event5", config.Device)
	assert.Equal(t, 1024, config.Buffer.Capacity)
	assert.Equal(t, eventbufpkg.PolicyRejectNewest, config.Buffer.Policy)
	assert.True(t, config.Buffer.DisableNonBlocking)
	assert.Equal(t, ":8181", config.HTTP.Listen)
	assert.Equal(t, "s3cret", config.HTTP.SecretKey)
	assert.True(t, config.HTTP.NoAuth)
	assert.Equal(t, ":9191", config.GRPC.Listen)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
	require.NoError(t, config.Validate())
}

func TestLoadConfig_PartialFileGetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node_id: minimal\n"), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPListen, config.HTTP.Listen)
	assert.Equal(t, eventbuf.DefaultCapacity, config.Buffer.Capacity)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("buffer:\n  policy: drop-everything\n"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
