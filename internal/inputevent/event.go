// Package inputevent turns raw input device events into the human-readable
// records stored in the event buffer.
package inputevent

import (
	"fmt"
	"time"
)

// Event types and codes, as defined by linux/input-event-codes.h.
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvRel uint16 = 0x02

	BtnLeft   uint16 = 0x110
	BtnRight  uint16 = 0x111
	BtnMiddle uint16 = 0x112

	RelX uint16 = 0x00
	RelY uint16 = 0x01
)

// Event is a single raw input event.
type Event struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value int32
}

// Format returns the record text for e, or false when e is not logged.
// Button presses (not releases) become "Left Click", "Right Click" or
// "Middle Click"; relative motion becomes "Mouse Move: X=<delta>" or
// "Mouse Move: Y=<delta>".
func Format(e Event) (string, bool) {
	switch e.Type {
	case EvKey:
		if e.Value == 0 {
			return "", false
		}
		switch e.Code {
		case BtnLeft:
			return "Left Click", true
		case BtnRight:
			return "Right Click", true
		case BtnMiddle:
			return "Middle Click", true
		}
	case EvRel:
		switch e.Code {
		case RelX:
			return fmt.Sprintf("Mouse Move: X=%d", e.Value), true
		case RelY:
			return fmt.Sprintf("Mouse Move: Y=%d", e.Value), true
		}
	}
	return "", false
}
