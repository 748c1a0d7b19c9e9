package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
)

// sseFrame is one decoded `data:` frame from an event stream.
type sseFrame struct {
	Step string
	Raw  json.RawMessage
}

// postSSE posts body with Accept: text/event-stream and returns every
// frame the server wrote. Streams for these workflows are finite; the
// call returns once the server closes the response.
func (app *TestApp) postSSE(t *testing.T, path string, body any, headers map[string]string) []sseFrame {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		app.BaseURL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "POST %s: unexpected status, body: %s", path, raw)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var frames []sseFrame
	for _, chunk := range strings.Split(strings.TrimSpace(string(raw)), "\n\n") {
		if chunk == "" {
			continue
		}
		require.True(t, strings.HasPrefix(chunk, "data: "), "frame %q lacks data prefix", chunk)
		payload := strings.TrimPrefix(chunk, "data: ")

		var head struct {
			Step string `json:"step"`
		}
		require.NoError(t, json.Unmarshal([]byte(payload), &head), "frame %q is not JSON", chunk)
		frames = append(frames, sseFrame{Step: head.Step, Raw: json.RawMessage(payload)})
	}
	require.NotEmpty(t, frames, "stream carried no frames")
	return frames
}

// frameSteps lists the step of every frame in arrival order.
func frameSteps(frames []sseFrame) []string {
	steps := make([]string, len(frames))
	for i, f := range frames {
		steps[i] = f.Step
	}
	return steps
}

// requireResultRun asserts the stream ended with a result frame and
// decodes the workflow run it carries.
func requireResultRun(t *testing.T, frames []sseFrame) models.WorkflowRun {
	t.Helper()

	last := frames[len(frames)-1]
	require.Equal(t, "result", last.Step, "terminal frame: %s", last.Raw)

	var terminal struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(last.Raw, &terminal))

	var run models.WorkflowRun
	require.NoError(t, json.Unmarshal(terminal.Data, &run))
	return run
}

// requireErrorFrame asserts the stream ended with an error frame and
// returns its message.
func requireErrorFrame(t *testing.T, frames []sseFrame) string {
	t.Helper()

	last := frames[len(frames)-1]
	require.Equal(t, "error", last.Step, "terminal frame: %s", last.Raw)

	var terminal struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(last.Raw, &terminal))
	return terminal.Error
}
