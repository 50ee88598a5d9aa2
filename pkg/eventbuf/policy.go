package eventbuf

import (
	"fmt"
	"strings"
)

// Policy selects what Append does when a record does not fit.
type Policy int

const (
	// PolicyEvictOldest removes the oldest records until the new one fits,
	// so the most recent event is never lost.
	PolicyEvictOldest Policy = iota
	// PolicyRejectNewest keeps the buffered history and discards the new record.
	PolicyRejectNewest
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyEvictOldest:
		return "evict-oldest"
	case PolicyRejectNewest:
		return "reject-newest"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy converts a configuration name into a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "evict-oldest", "evict_oldest", "evict":
		return PolicyEvictOldest, nil
	case "reject-newest", "reject_newest", "reject":
		return PolicyRejectNewest, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	switch p {
	case PolicyEvictOldest, PolicyRejectNewest:
		return []byte(p.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPolicy, int(p))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
