package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// SSEWriter adapts one connected HTTP client to the Sink interface. Every
// event is written as `data: {json}` followed by a blank line and flushed
// immediately.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewSSEWriter prepares the response for event streaming and returns the
// sink. It fails when the underlying writer cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Emit writes one progress event frame.
func (s *SSEWriter) Emit(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal progress event", "step", event.Step, "error", err)
		return
	}
	s.writeFrame(data)
}

// WriteResult writes the terminal success frame `{"step":"result","data":...}`.
func (s *SSEWriter) WriteResult(result any) {
	data, err := json.Marshal(map[string]any{
		"step":      StageResult,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"data":      result,
	})
	if err != nil {
		slog.Warn("failed to marshal workflow result", "error", err)
		return
	}
	s.writeFrame(data)
}

// WriteError writes the terminal failure frame `{"step":"error","error":...}`.
func (s *SSEWriter) WriteError(message string) {
	data, err := json.Marshal(map[string]any{
		"step":      StageError,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"error":     message,
	})
	if err != nil {
		return
	}
	s.writeFrame(data)
}

func (s *SSEWriter) writeFrame(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		// Client went away; stop writing further frames.
		s.closed = true
		return
	}
	s.flusher.Flush()
}
