package proxy

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MisreadableMind/word-to-site-ai/pkg/ai"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
	"github.com/MisreadableMind/word-to-site-ai/pkg/store"
)

const testKey = "wts_AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

type fakeStore struct {
	sites    map[string]*models.ProxySite
	tiers    map[string]*models.SubscriptionTier
	usage    map[string]int64
	usageErr error
}

func (f *fakeStore) GetProxySiteByKey(_ context.Context, apiKey string) (*models.ProxySite, error) {
	site, ok := f.sites[apiKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *site
	return &copied, nil
}

func (f *fakeStore) GetTier(_ context.Context, tier string) (*models.SubscriptionTier, error) {
	t, ok := f.tiers[tier]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeStore) MonthTokenUsage(_ context.Context, siteID string, _ time.Time) (int64, error) {
	if f.usageErr != nil {
		return 0, f.usageErr
	}
	return f.usage[siteID], nil
}

type fakeLogger struct {
	entries []models.RequestLogEntry
}

func (f *fakeLogger) Log(entry models.RequestLogEntry) {
	f.entries = append(f.entries, entry)
}

type stubCompleter struct {
	resp  *ai.Response
	errs  []error // consumed per call; nil entry means success
	calls int
}

func (s *stubCompleter) Complete(_ context.Context, _ ai.Request) (*ai.Response, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.resp, nil
}

func newTestGateway(completer ai.Completer) (*Gateway, *fakeStore, *fakeLogger) {
	st := &fakeStore{
		sites: map[string]*models.ProxySite{
			testKey: {
				ID:                "11111111-1111-1111-1111-111111111111",
				Domain:            "example.com",
				APIKey:            testKey,
				Status:            models.SiteStatusActive,
				SubscriptionTier:  "free",
				MonthlyTokenLimit: 100,
			},
		},
		tiers: map[string]*models.SubscriptionTier{
			"free": {
				Tier:              "free",
				DisplayName:       "Free",
				MonthlyTokenLimit: 100,
				AllowedModels:     []string{"gpt-4o-mini", "gemini-2.0-flash"},
			},
		},
		usage: map[string]int64{},
	}
	logs := &fakeLogger{}
	g := NewGateway(st, ai.NewRouter(completer, completer, nil), logs)
	return g, st, logs
}

func chatReq(model string) ChatRequest {
	return ChatRequest{
		Model:    model,
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "hello"}},
	}
}

func TestChatHappyPath(t *testing.T) {
	completer := &stubCompleter{resp: &ai.Response{
		Content: "Hi there!",
		Model:   "gpt-4o-mini",
		Usage:   ai.Usage{PromptTokens: 7, CompletionTokens: 5, TotalTokens: 12},
	}}
	g, _, logs := newTestGateway(completer)

	completion, err := g.Chat(context.Background(), testKey, chatReq("gpt-4o-mini"))
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^chatcmpl-[0-9a-f]{24}$`), completion.ID)
	assert.Equal(t, "chat.completion", completion.Object)
	assert.Equal(t, "gpt-4o-mini", completion.Model)
	require.Len(t, completion.Choices, 1)
	assert.Equal(t, ai.RoleAssistant, completion.Choices[0].Message.Role)
	assert.Equal(t, "Hi there!", completion.Choices[0].Message.Content)
	assert.Equal(t, "stop", completion.Choices[0].FinishReason)
	assert.Equal(t, 12, completion.Usage.TotalTokens)
	assert.Equal(t, completion.Usage.PromptTokens+completion.Usage.CompletionTokens,
		completion.Usage.TotalTokens)

	require.Len(t, logs.entries, 1)
	entry := logs.entries[0]
	assert.Equal(t, http.StatusOK, entry.ResponseStatus)
	assert.Equal(t, "openai", entry.Provider)
	assert.Equal(t, 12, entry.TotalTokens)
	assert.Equal(t, "/v1/chat/completions", entry.Endpoint)
	assert.Empty(t, entry.ErrorMessage)
}

func TestChatQuotaExceeded(t *testing.T) {
	completer := &stubCompleter{resp: &ai.Response{Content: "should not run"}}
	g, st, logs := newTestGateway(completer)
	st.usage["11111111-1111-1111-1111-111111111111"] = 100 // limit is 100

	_, err := g.Chat(context.Background(), testKey, chatReq("gpt-4o-mini"))
	require.Error(t, err)

	gerr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, gerr.Status)
	assert.Equal(t, ErrTypeQuotaExceeded, gerr.Type)
	require.NotNil(t, gerr.Usage)
	assert.Equal(t, int64(100), gerr.Usage.Used)
	assert.Equal(t, int64(100), gerr.Usage.Limit)
	assert.Equal(t, int64(0), gerr.Usage.Remaining)

	assert.Zero(t, completer.calls, "no upstream call on quota rejection")
	assert.Empty(t, logs.entries, "no accounting row on quota rejection")
}

func TestChatQuotaFailOpen(t *testing.T) {
	completer := &stubCompleter{resp: &ai.Response{Content: "ok", Model: "gpt-4o-mini"}}
	g, st, _ := newTestGateway(completer)
	st.usageErr = fmt.Errorf("connection refused")

	_, err := g.Chat(context.Background(), testKey, chatReq("gpt-4o-mini"))
	require.NoError(t, err, "accounting outage must not block tenants")
	assert.Equal(t, 1, completer.calls)
}

func TestChatModelNotAllowed(t *testing.T) {
	completer := &stubCompleter{resp: &ai.Response{Content: "should not run"}}
	g, _, logs := newTestGateway(completer)

	_, err := g.Chat(context.Background(), testKey, chatReq("claude-3-opus-latest"))
	require.Error(t, err)

	gerr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, gerr.Status)
	assert.Equal(t, ErrTypeModelNotAllowed, gerr.Type)
	assert.Contains(t, gerr.Message, "claude-3-opus-latest")

	assert.Zero(t, completer.calls)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, http.StatusForbidden, logs.entries[0].ResponseStatus)
}

func TestChatAuthentication(t *testing.T) {
	g, st, _ := newTestGateway(&stubCompleter{resp: &ai.Response{Content: "x"}})

	t.Run("malformed key", func(t *testing.T) {
		_, err := g.Chat(context.Background(), "not-a-key", chatReq("gpt-4o-mini"))
		gerr, ok := AsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, gerr.Status)
		assert.Equal(t, ErrTypeAuthentication, gerr.Type)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := g.Chat(context.Background(), "wts_BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB", chatReq("gpt-4o-mini"))
		gerr, ok := AsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, gerr.Status)
	})

	t.Run("revoked site", func(t *testing.T) {
		st.sites[testKey].Status = models.SiteStatusRevoked
		defer func() { st.sites[testKey].Status = models.SiteStatusActive }()

		_, err := g.Chat(context.Background(), testKey, chatReq("gpt-4o-mini"))
		gerr, ok := AsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, gerr.Status)
	})
}

func TestChatValidation(t *testing.T) {
	g, st, _ := newTestGateway(&stubCompleter{resp: &ai.Response{Content: "x"}})

	t.Run("missing model", func(t *testing.T) {
		_, err := g.Chat(context.Background(), testKey, ChatRequest{
			Messages: []ai.Message{{Role: ai.RoleUser, Content: "hi"}},
		})
		gerr, ok := AsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, gerr.Status)
		assert.Equal(t, ErrTypeInvalidRequest, gerr.Type)
	})

	t.Run("empty messages", func(t *testing.T) {
		_, err := g.Chat(context.Background(), testKey, ChatRequest{Model: "gpt-4o-mini"})
		gerr, ok := AsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, gerr.Status)
	})

	t.Run("unknown model prefix", func(t *testing.T) {
		// Whitelist the model so the policy check passes and dispatch is
		// what rejects it.
		st.tiers["free"].AllowedModels = append(st.tiers["free"].AllowedModels, "mistral-large")
		_, err := g.Chat(context.Background(), testKey, chatReq("mistral-large"))
		gerr, ok := AsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, gerr.Status)
		assert.Contains(t, gerr.Message, "unsupported model")
	})
}

func TestChatVendorNotConfigured(t *testing.T) {
	// Router has no Anthropic client; tier allows the model.
	g, st, logs := newTestGateway(&stubCompleter{resp: &ai.Response{Content: "x"}})
	st.tiers["free"].AllowedModels = append(st.tiers["free"].AllowedModels, "claude-3-5-haiku-latest")

	_, err := g.Chat(context.Background(), testKey, chatReq("claude-3-5-haiku-latest"))
	gerr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, gerr.Status)
	assert.Equal(t, ErrTypeUpstream, gerr.Type)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, http.StatusBadGateway, logs.entries[0].ResponseStatus)
}

func TestChatUpstreamError(t *testing.T) {
	// A non-retryable upstream failure: vendor rejected our credentials.
	upstreamErr := providers.FromStatus("openai", http.StatusUnauthorized, "Incorrect API key provided: sk-proj-abcdefghijklmnopqrstuvwxyz123456")
	completer := &stubCompleter{errs: []error{upstreamErr}}
	g, _, logs := newTestGateway(completer)

	_, err := g.Chat(context.Background(), testKey, chatReq("gpt-4o-mini"))
	require.Error(t, err)

	gerr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, gerr.Status, "tenant sees 502, never the vendor auth status")
	assert.Equal(t, ErrTypeUpstream, gerr.Type)
	assert.NotContains(t, gerr.Message, "sk-proj", "vendor message must not leak to the tenant")

	assert.Equal(t, 1, completer.calls, "auth failures are not retried")
	require.Len(t, logs.entries, 1)
	assert.Equal(t, http.StatusUnauthorized, logs.entries[0].ResponseStatus,
		"the log keeps the vendor's own status")
	assert.NotEmpty(t, logs.entries[0].ErrorMessage)
}

func TestChatRetriesTransientErrors(t *testing.T) {
	transient := providers.FromStatus("openai", http.StatusServiceUnavailable, "overloaded")
	completer := &stubCompleter{
		resp: &ai.Response{Content: "recovered", Model: "gpt-4o-mini", Usage: ai.Usage{TotalTokens: 3}},
		errs: []error{transient, nil},
	}
	g, _, logs := newTestGateway(completer)

	completion, err := g.Chat(context.Background(), testKey, chatReq("gpt-4o-mini"))
	require.NoError(t, err)
	assert.Equal(t, "recovered", completion.Choices[0].Message.Content)
	assert.Equal(t, 2, completer.calls)

	require.Len(t, logs.entries, 1)
	assert.Equal(t, http.StatusOK, logs.entries[0].ResponseStatus)
}

func TestModels(t *testing.T) {
	g, _, _ := newTestGateway(&stubCompleter{resp: &ai.Response{Content: "x"}})

	list, err := g.Models(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "list", list.Object)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "gpt-4o-mini", list.Data[0].ID)
	assert.Equal(t, "model", list.Data[0].Object)
	assert.Equal(t, "openai", list.Data[0].OwnedBy)
	assert.Equal(t, "gemini", list.Data[1].OwnedBy)
}

func TestUsage(t *testing.T) {
	g, st, _ := newTestGateway(&stubCompleter{resp: &ai.Response{Content: "x"}})
	st.usage["11111111-1111-1111-1111-111111111111"] = 30

	snapshot, err := g.Usage(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, int64(30), snapshot.Used)
	assert.Equal(t, int64(100), snapshot.Limit)
	assert.Equal(t, int64(70), snapshot.Remaining)
}

func TestSnapshotNeverNegative(t *testing.T) {
	snapshot := Snapshot(150, 100)
	assert.Equal(t, int64(0), snapshot.Remaining)
}
