// Package control dispatches administrative commands to the event buffer.
//
// Commands are numbered the way Linux ioctl requests without arguments are:
// an 8-bit type (the "magic" character) and an 8-bit sequence number.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

// Command is an administrative request number.
type Command uint32

// Magic is the command type shared by all buffer commands.
const Magic = 'M'

// CommandClear empties the event buffer.
var CommandClear = IO(Magic, 1)

// IO builds a command number from a type and sequence number, matching the
// kernel's _IO(type, nr) encoding.
func IO(typ byte, nr byte) Command {
	return Command(uint32(typ)<<8 | uint32(nr))
}

// Type returns the command's type byte.
func (c Command) Type() byte { return byte(c >> 8) }

// Number returns the command's sequence number.
func (c Command) Number() byte { return byte(c) }

// String returns the command name, or its number in hex for unknown commands.
func (c Command) String() string {
	if c == CommandClear {
		return "clear"
	}
	return fmt.Sprintf("0x%04x", uint32(c))
}

// ParseCommand accepts a command name ("clear") or a number in any base
// strconv understands ("0x4d01", "19713").
func ParseCommand(s string) (Command, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "clear") {
		return CommandClear, nil
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid command %q: %w", s, err)
	}
	return Command(n), nil
}

// Dispatcher executes administrative commands against a buffer.
type Dispatcher struct {
	target eventbuf.Resetter
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil logger uses slog.Default().
func NewDispatcher(target eventbuf.Resetter, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		target: target,
		logger: logger.With("component", "control"),
	}
}

// Control executes cmd. Unknown commands return eventbuf.ErrUnsupportedCommand.
func (d *Dispatcher) Control(ctx context.Context, cmd Command) error {
	switch cmd {
	case CommandClear:
		d.target.Reset()
		d.logger.InfoContext(ctx, "buffer cleared")
		return nil
	default:
		d.logger.WarnContext(ctx, "unsupported control command", "command", cmd.String())
		return fmt.Errorf("command %s: %w", cmd, eventbuf.ErrUnsupportedCommand)
	}
}
