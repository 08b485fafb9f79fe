package status

import "time"

// State is the lifecycle marker carried by an Event.
type State string

const (
	Processing State = "Processing"
	Complete   State = "Complete"
	Error      State = "Error"
	Success    State = "Success"
)

// Event is one progress notification. Events are immutable once published.
type Event struct {
	RequestID string    `json:"request_id"`
	Step      string    `json:"step"`
	Status    State     `json:"status"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives progress for a single request.
type Sink interface {
	Emit(step string, state State, details string)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Emit(string, State, string) {}

// Func adapts a function to Sink.
type Func func(step string, state State, details string)

func (f Func) Emit(step string, state State, details string) { f(step, state, details) }
