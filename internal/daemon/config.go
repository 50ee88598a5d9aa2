package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rmacdonaldsmith/inputlog/internal/eventbuf"
	"github.com/rmacdonaldsmith/inputlog/internal/inputevent"
)

var (
	// ErrEmptyNodeID is returned when node ID is empty
	ErrEmptyNodeID = errors.New("node ID cannot be empty")
	// ErrInvalidListenAddress is returned when the HTTP listen address is empty
	ErrInvalidListenAddress = errors.New("listen address cannot be empty")
)

// Default addresses used when the configuration leaves them unset.
const (
	DefaultHTTPListen = ":8080"
	DefaultGRPCListen = ":9090"
)

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Listen    string `yaml:"listen"`
	SecretKey string `yaml:"secret_key"`
	NoAuth    bool   `yaml:"no_auth"`
}

// GRPCConfig configures the gRPC control plane. An empty Listen disables it.
type GRPCConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents configuration for a Node
type Config struct {
	// NodeID identifies this daemon in logs and health reports
	NodeID string `yaml:"node_id"`

	// Buffer configures the event buffer
	Buffer eventbuf.Config `yaml:"buffer"`

	// Device is an evdev node (e.g. /dev/input/event3) to ingest from. Optional.
	Device string `yaml:"device"`

	HTTP HTTPConfig `yaml:"http"`
	GRPC GRPCConfig `yaml:"grpc"`
	Log  LogConfig  `yaml:"log"`

	// Source overrides Device with an in-process event source
	Source inputevent.Source `yaml:"-"`

	// Logger is used by the node and passed to its components
	Logger *slog.Logger `yaml:"-"`
}

// NewConfig creates a new Node configuration with safe defaults
func NewConfig(nodeID string) *Config {
	c := &Config{NodeID: nodeID}
	c.SetDefaults()
	return c
}

// LoadConfig reads a YAML configuration file. Unset fields get defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	c.SetDefaults()
	return &c, nil
}

// SetDefaults fills unset fields with sensible defaults
func (c *Config) SetDefaults() {
	if c.NodeID == "" {
		c.NodeID = defaultNodeID()
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = DefaultHTTPListen
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Buffer.Logger == nil {
		c.Buffer.Logger = c.Logger
	}
	c.Buffer.SetDefaults()
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return ErrEmptyNodeID
	}
	if c.HTTP.Listen == "" {
		return ErrInvalidListenAddress
	}
	if err := c.Buffer.Validate(); err != nil {
		return fmt.Errorf("invalid buffer config: %w", err)
	}
	return nil
}

// WithBuffer sets the event buffer configuration
func (c *Config) WithBuffer(buffer eventbuf.Config) *Config {
	c.Buffer = buffer
	return c
}

// WithDevice sets the evdev node to ingest from
func (c *Config) WithDevice(path string) *Config {
	c.Device = path
	return c
}

// WithSource sets an in-process event source
func (c *Config) WithSource(source inputevent.Source) *Config {
	c.Source = source
	return c
}

// WithHTTP sets the HTTP API configuration
func (c *Config) WithHTTP(http HTTPConfig) *Config {
	c.HTTP = http
	return c
}

// WithGRPCListen sets the gRPC listen address; empty disables gRPC
func (c *Config) WithGRPCListen(addr string) *Config {
	c.GRPC.Listen = addr
	return c
}

// WithLogger sets the logger for the node and its components
func (c *Config) WithLogger(logger *slog.Logger) *Config {
	c.Logger = logger
	c.Buffer.Logger = logger
	return c
}

// defaultNodeID generates a default node ID based on hostname
func defaultNodeID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "inputlog-1"
	}
	return fmt.Sprintf("inputlog-%s", hostname)
}
