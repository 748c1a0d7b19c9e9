package progress

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMarshal_FlattensPayload(t *testing.T) {
	ev := Event{
		Step:      StageCreatingSite,
		Timestamp: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Message:   "Creating site",
		Payload:   map[string]any{"domain": "alpha.example", "attempt": 1},
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "creating_site", decoded["step"])
	assert.Equal(t, "Creating site", decoded["message"])
	assert.Equal(t, "alpha.example", decoded["domain"])
	assert.Equal(t, float64(1), decoded["attempt"])
	assert.Equal(t, "2026-03-14T09:30:00Z", decoded["timestamp"])
}

func TestEventMarshal_ReservedKeysWin(t *testing.T) {
	ev := NewEvent("real_step", "real message", map[string]any{
		"step":    "spoofed",
		"message": "spoofed",
	})

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "real_step", decoded["step"])
	assert.Equal(t, "real message", decoded["message"])
}

func TestSSEWriter_FramesAndHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	w.Emit(NewEvent(StageCreatingSite, "Creating site", map[string]any{"domain": "alpha.example"}))
	w.WriteResult(map[string]any{"ok": true})

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	require.Len(t, frames, 2)

	for _, frame := range frames {
		assert.True(t, strings.HasPrefix(frame, "data: "), "frame %q", frame)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &decoded))
	}

	var terminal map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[1], "data: ")), &terminal))
	assert.Equal(t, "result", terminal["step"])
	assert.Equal(t, map[string]any{"ok": true}, terminal["data"])
}

func TestSSEWriter_ErrorFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	w.WriteError("Failed to get A record IPs")

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "data: "))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(body, "data: "), "\n\n")), &decoded))
	assert.Equal(t, "error", decoded["step"])
	assert.Equal(t, "Failed to get A record IPs", decoded["error"])
}

func TestSSEWriter_EventsOrderedByTimestamp(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		w.Emit(NewEvent(StageWaitingForSite, "poll", nil))
	}

	frames := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 5)

	var last time.Time
	for _, frame := range frames {
		var decoded struct {
			Timestamp time.Time `json:"timestamp"`
		}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &decoded))
		assert.False(t, decoded.Timestamp.Before(last))
		last = decoded.Timestamp
	}
}
