package status

import (
	"strings"
	"testing"
	"time"

	"github.com/ruler-racer/rulerdash/internal/session"
)

func TestPhaseLabel(t *testing.T) {
	tests := []struct {
		phase   session.Phase
		elapsed time.Duration
		want    string
	}{
		{session.Idle, 0, "Idle"},
		{session.Idle, 350 * time.Millisecond, "Idle"},
		{session.Searching, 0, "Searching"},
		{session.Searching, 100 * time.Millisecond, "Searching."},
		{session.Searching, 450 * time.Millisecond, "Searching...."},
		{session.Searching, 500 * time.Millisecond, "Searching"},
	}
	for _, tt := range tests {
		if got := PhaseLabel(tt.phase, tt.elapsed); got != tt.want {
			t.Errorf("PhaseLabel(%v, %v) = %q, want %q", tt.phase, tt.elapsed, got, tt.want)
		}
	}
}

func TestViewConnectionStates(t *testing.T) {
	m := New("ws://solver/ws")
	m.Width = 120

	if v := m.View(); !strings.Contains(v, "Disconnected") {
		t.Errorf("expected Disconnected, got %q", v)
	}

	m.Reconnecting = true
	if v := m.View(); !strings.Contains(v, "Reconnecting") {
		t.Errorf("expected Reconnecting, got %q", v)
	}

	m.Connected = true
	m.Phase = session.Searching
	m.Elapsed = 1200 * time.Millisecond
	m.Events = 7
	m.Notice = "solve failed"
	v := m.View()
	for _, want := range []string{"Connected", "Searching..", "1.2s elapsed", "7 events", "ws://solver/ws", "solve failed"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q: %q", want, v)
		}
	}
}
