// Package progress carries ordered, per-run workflow events to attached
// consumers.
//
// Event flow:
//  1. A workflow emits events synchronously as its stages advance.
//  2. A Broadcaster fans each event out to every attached sink (SSE clients,
//     the structured log) while preserving per-run order.
//  3. A sink that cannot accept an event within the slow-sink timeout has
//     that event dropped; a counter records the drop.
//
// Events within a single run are totally ordered: the producer is the
// workflow goroutine itself and every subscriber receives events through a
// FIFO channel drained by a dedicated pump goroutine.
package progress

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Event is one progress message. Payload keys are flattened into the JSON
// object next to step/timestamp/message.
type Event struct {
	Step      string
	Timestamp time.Time
	Message   string
	Payload   map[string]any
}

// NewEvent stamps an event with the current time.
func NewEvent(step, message string, payload map[string]any) Event {
	return Event{
		Step:      step,
		Timestamp: time.Now().UTC(),
		Message:   message,
		Payload:   payload,
	}
}

// MarshalJSON flattens the payload into the top-level object. Reserved keys
// (step, timestamp, message) always win over payload entries.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Payload)+3)
	for k, v := range e.Payload {
		m[k] = v
	}
	m["step"] = e.Step
	m["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	if e.Message != "" {
		m["message"] = e.Message
	}
	return json.Marshal(m)
}

// Sink consumes ordered progress events for one workflow run.
type Sink interface {
	Emit(event Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f.
func (f SinkFunc) Emit(event Event) { f(event) }

// LogSink mirrors every event into the structured log.
type LogSink struct {
	RunID string
}

// Emit logs the event at info level.
func (s LogSink) Emit(event Event) {
	slog.Info("workflow progress",
		"run_id", s.RunID,
		"step", event.Step,
		"message", event.Message)
}

// NopSink discards every event.
type NopSink struct{}

// Emit does nothing.
func (NopSink) Emit(Event) {}
