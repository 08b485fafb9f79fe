package statuswatch

import (
	"errors"
	"strings"
	"testing"
	"time"

	"underwriting-backend/internal/status"
)

func event(requestID, step string, state status.State) eventMsg {
	return eventMsg(status.Event{
		RequestID: requestID,
		Step:      step,
		Status:    state,
		Details:   step + " details",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
}

func TestModelStopsAfterTerminalEventForRequest(t *testing.T) {
	m := New("req-1", make(chan status.Event), make(chan error))

	next, cmd := m.Update(event("req-1", "bank_analysis", status.Processing))
	m = next.(Model)
	if m.done || cmd == nil {
		t.Fatalf("model should keep waiting after a progress event")
	}

	next, cmd = m.Update(event("req-1", "complete", status.Success))
	m = next.(Model)
	if !m.done || cmd == nil {
		t.Fatalf("model should finish on the complete step")
	}
	if len(m.log) != 2 {
		t.Fatalf("expected 2 logged events, got %d", len(m.log))
	}
	view := m.View()
	if !strings.Contains(view, "request req-1") || !strings.Contains(view, "complete details") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}

func TestModelWithoutFilterKeepsFollowing(t *testing.T) {
	m := New("", make(chan status.Event), make(chan error))
	next, _ := m.Update(event("req-9", "error", status.Error))
	m = next.(Model)
	if m.done {
		t.Fatalf("an unfiltered watcher should follow later runs")
	}
	if !strings.Contains(m.View(), "[req-9]") {
		t.Fatalf("unfiltered view should show request IDs")
	}
}

func TestModelReportsStreamFailure(t *testing.T) {
	m := New("req-1", make(chan status.Event), make(chan error))
	next, _ := m.Update(streamEndedMsg{err: errors.New("connection refused")})
	m = next.(Model)
	if !m.done || m.Err() == nil {
		t.Fatalf("stream failure should end the model with an error")
	}
	if !strings.Contains(m.View(), "stream error: connection refused") {
		t.Fatalf("view should show the stream error")
	}
}

func TestModelCapsEventLog(t *testing.T) {
	m := New("", make(chan status.Event), make(chan error))
	for i := 0; i < maxEvents+25; i++ {
		next, _ := m.Update(event("req", "bank_analysis", status.Processing))
		m = next.(Model)
	}
	if len(m.log) != maxEvents {
		t.Fatalf("log length = %d, want %d", len(m.log), maxEvents)
	}
}
