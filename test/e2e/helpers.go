package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
)

// ────────────────────────────────────────────────────────────
// HTTP client helpers
// ────────────────────────────────────────────────────────────

func (app *TestApp) doJSON(t *testing.T, method, path string, body any, headers map[string]string, expectedStatus int) map[string]any {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, app.BaseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, expectedStatus, resp.StatusCode, "%s %s: unexpected status, body: %s", method, path, raw)

	if len(raw) == 0 {
		return nil
	}
	var result map[string]any
	require.NoError(t, json.Unmarshal(raw, &result), "%s %s: non-JSON body: %s", method, path, raw)
	return result
}

func (app *TestApp) postJSON(t *testing.T, path string, body any, headers map[string]string, expectedStatus int) map[string]any {
	t.Helper()
	return app.doJSON(t, http.MethodPost, path, body, headers, expectedStatus)
}

func (app *TestApp) getJSON(t *testing.T, path string, headers map[string]string, expectedStatus int) map[string]any {
	t.Helper()
	return app.doJSON(t, http.MethodGet, path, nil, headers, expectedStatus)
}

func (app *TestApp) patchJSON(t *testing.T, path string, body any, headers map[string]string, expectedStatus int) map[string]any {
	t.Helper()
	return app.doJSON(t, http.MethodPatch, path, body, headers, expectedStatus)
}

// postRun posts a workflow request in JSON mode and decodes the run.
// JSON mode always answers 200; success or failure rides inside the run.
func (app *TestApp) postRun(t *testing.T, path string, body any, headers map[string]string) models.WorkflowRun {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		app.BaseURL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode, "POST %s: unexpected status", path)

	var run models.WorkflowRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	return run
}

// decodeResult re-marshals a run's result into a typed struct.
func decodeResult(t *testing.T, run models.WorkflowRun, out any) {
	t.Helper()
	data, err := json.Marshal(run.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

// stepIDs lists the run's step record ids in order.
func stepIDs(run models.WorkflowRun) []string {
	ids := make([]string, len(run.Steps))
	for i, step := range run.Steps {
		ids[i] = step.Step
	}
	return ids
}

// adminHeaders carries the admin credential.
func (app *TestApp) adminHeaders() map[string]string {
	return map[string]string{"x-proxy-admin-secret": app.adminSecret}
}

// bearerHeaders carries a tenant API key.
func bearerHeaders(apiKey string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + apiKey}
}

// ────────────────────────────────────────────────────────────
// Proxy helpers
// ────────────────────────────────────────────────────────────

// CreateProxySite provisions a tenant through the admin API and returns
// its id and API key.
func (app *TestApp) CreateProxySite(t *testing.T, domain, label, tier string) (id, apiKey string) {
	t.Helper()
	site := app.postJSON(t, "/admin/proxy/sites",
		map[string]any{"domain": domain, "label": label, "tier": tier},
		app.adminHeaders(), http.StatusCreated)
	id, _ = site["id"].(string)
	apiKey, _ = site["api_key"].(string)
	require.NotEmpty(t, id)
	require.NotEmpty(t, apiKey)
	return id, apiKey
}

// ChatCompletion posts one completion as a tenant and returns the raw
// status code plus the decoded body (the completion or the error
// envelope).
func (app *TestApp) ChatCompletion(t *testing.T, apiKey, model, content string) (int, map[string]any) {
	t.Helper()

	body := map[string]any{
		"model":    model,
		"messages": []map[string]string{{"role": "user", "content": content}},
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		app.BaseURL+"/v1/chat/completions", bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return resp.StatusCode, result
}

// WaitForLoggedTokens polls the admin usage endpoint until the site's
// month-to-date total reaches want. Accounting is asynchronous, so the
// deadline covers the log worker's drain.
func (app *TestApp) WaitForLoggedTokens(t *testing.T, siteID string, want int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		req, err := http.NewRequest(http.MethodGet, app.BaseURL+"/admin/proxy/sites/"+siteID+"/usage", nil)
		if err != nil {
			return false
		}
		req.Header.Set("x-proxy-admin-secret", app.adminSecret)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		var out struct {
			Usage struct {
				Used int64 `json:"used"`
			} `json:"usage"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return false
		}
		return out.Usage.Used >= want
	}, 5*time.Second, 50*time.Millisecond, "site %s never reached %d logged tokens", siteID, want)
}

// errorEnvelope digs the error object out of a decoded response body.
func errorEnvelope(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, "body has no error envelope: %v", body)
	return envelope
}
