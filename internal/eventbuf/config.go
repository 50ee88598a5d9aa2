package eventbuf

import (
	"fmt"
	"log/slog"

	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

// DefaultCapacity is the buffer size used when none is configured.
const DefaultCapacity = 256

// Config holds configuration for a Store.
type Config struct {
	// Capacity is the fixed size of the buffer in bytes, delimiters included.
	Capacity int `yaml:"capacity"`

	// Policy decides what happens when an appended record does not fit.
	Policy eventbuf.Policy `yaml:"policy"`

	// DisableNonBlocking makes Drain ignore its nonBlocking flag and always wait.
	DisableNonBlocking bool `yaml:"disable_nonblocking"`

	// Logger receives overflow diagnostics. Defaults to slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

// NewConfig creates a Config with the given capacity and the default policy.
func NewConfig(capacity int) *Config {
	return &Config{
		Capacity: capacity,
		Policy:   eventbuf.PolicyEvictOldest,
	}
}

// SetDefaults fills unset fields with sensible defaults.
func (c *Config) SetDefaults() {
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks the configuration and returns an error if it is unusable.
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: got %d", eventbuf.ErrInvalidCapacity, c.Capacity)
	}
	switch c.Policy {
	case eventbuf.PolicyEvictOldest, eventbuf.PolicyRejectNewest:
	default:
		return fmt.Errorf("%w: %d", eventbuf.ErrUnknownPolicy, int(c.Policy))
	}
	return nil
}

// WithPolicy sets the overflow policy.
func (c *Config) WithPolicy(policy eventbuf.Policy) *Config {
	c.Policy = policy
	return c
}

// WithNonBlocking enables or disables honouring non-blocking drains.
func (c *Config) WithNonBlocking(enabled bool) *Config {
	c.DisableNonBlocking = !enabled
	return c
}

// WithLogger sets the logger used for overflow diagnostics.
func (c *Config) WithLogger(logger *slog.Logger) *Config {
	c.Logger = logger
	return c
}
