package inputevent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		event  Event
		want   string
		logged bool
	}{
		{"left press", Event{Type: EvKey, Code: BtnLeft, Value: 1}, "Left Click", true},
		{"right press", Event{Type: EvKey, Code: BtnRight, Value: 1}, "Right Click", true},
		{"middle press", Event{Type: EvKey, Code: BtnMiddle, Value: 1}, "Middle Click", true},
		{"autorepeat counts as press", Event{Type: EvKey, Code: BtnLeft, Value: 2}, "Left Click", true},
		{"release ignored", Event{Type: EvKey, Code: BtnLeft, Value: 0}, "", false},
		{"other key ignored", Event{Type: EvKey, Code: 0x1e, Value: 1}, "", false},
		{"move x", Event{Type: EvRel, Code: RelX, Value: -3}, "Mouse Move: X=-3", true},
		{"move y", Event{Type: EvRel, Code: RelY, Value: 12}, "Mouse Move: Y=12", true},
		{"wheel ignored", Event{Type: EvRel, Code: 0x08, Value: 1}, "", false},
		{"sync ignored", Event{Type: EvSyn}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Format(tt.event)
			assert.Equal(t, tt.logged, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
