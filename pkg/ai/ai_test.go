package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
)

func TestTranslateToGemini_SystemAndRoles(t *testing.T) {
	contents, system := translateToGemini([]Message{
		{Role: RoleSystem, Content: "you are a helper"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi there"},
		{Role: RoleUser, Content: "bye"},
	})

	require.NotNil(t, system)
	require.Len(t, system.Parts, 1)
	assert.Equal(t, "you are a helper", system.Parts[0].Text)

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "hi there", contents[1].Parts[0].Text)
	assert.Equal(t, "user", contents[2].Role)
}

func TestTranslateToGemini_NoSystem(t *testing.T) {
	contents, system := translateToGemini([]Message{{Role: RoleUser, Content: "hello"}})
	assert.Nil(t, system)
	assert.Len(t, contents, 1)
}

func TestTranslateToAnthropic_HoistsSystem(t *testing.T) {
	system, rest := translateToAnthropic([]Message{
		{Role: RoleSystem, Content: "first instruction"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleSystem, Content: "second instruction"},
		{Role: RoleAssistant, Content: "hi"},
	})

	assert.Equal(t, "first instruction\n\nsecond instruction", system)
	require.Len(t, rest, 2)
	assert.Equal(t, RoleUser, rest[0].Role)
	assert.Equal(t, RoleAssistant, rest[1].Role)
}

func TestOpenAIComplete_Success(t *testing.T) {
	var captured openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "generated text"}},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20},
		})
	}))
	defer server.Close()

	client := NewOpenAI("test-key", server.URL, "", time.Second)
	resp, err := client.Complete(context.Background(), Request{
		Model:       "gpt-4o-mini",
		Messages:    []Message{{Role: RoleUser, Content: "write"}},
		MaxTokens:   Int(256),
		Temperature: Float(0.7),
	})

	require.NoError(t, err)
	assert.Equal(t, "generated text", resp.Content)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, 20, resp.Usage.TotalTokens)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)

	require.NotNil(t, captured.MaxTokens)
	assert.Equal(t, 256, *captured.MaxTokens)
	require.NotNil(t, captured.Temperature)
	assert.InDelta(t, 0.7, *captured.Temperature, 0.0001)
}

func TestOpenAIComplete_UpstreamErrorMapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer server.Close()

	client := NewOpenAI("test-key", server.URL, "", time.Second)
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})

	require.Error(t, err)
	pe, ok := providers.AsError(err)
	require.True(t, ok)
	assert.Equal(t, providers.KindUpstreamFailure, pe.Kind)
	assert.Equal(t, "overloaded", pe.VendorMessage)
	assert.True(t, pe.Retryable)
}

func TestOpenAIComplete_MissingKey(t *testing.T) {
	client := NewOpenAI("", "", "", time.Second)
	_, err := client.Complete(context.Background(), Request{})
	assert.Equal(t, providers.KindAuth, providers.KindOf(err))
}

func TestOpenAIComplete_EmptyChoicesIsInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewOpenAI("k", server.URL, "", time.Second)
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.Equal(t, providers.KindUpstreamInvalid, providers.KindOf(err))
}

func TestOpenAICompleteVision_SendsImagePart(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL *struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "a bakery landing page"}},
			},
			"usage": map[string]int{"prompt_tokens": 40, "completion_tokens": 10, "total_tokens": 50},
		})
	}))
	defer server.Close()

	client := NewOpenAI("test-key", server.URL, "gpt-4o-mini", time.Second)
	resp, err := client.CompleteVision(context.Background(), VisionRequest{
		Prompt:    "Describe this site",
		ImageURL:  "https://shots.example/s1.png",
		MaxTokens: Int(512),
	})

	require.NoError(t, err)
	assert.Equal(t, "a bakery landing page", resp.Content)

	require.Len(t, captured.Messages, 1)
	require.Len(t, captured.Messages[0].Content, 2)
	assert.Equal(t, "text", captured.Messages[0].Content[0].Type)
	assert.Equal(t, "Describe this site", captured.Messages[0].Content[0].Text)
	require.NotNil(t, captured.Messages[0].Content[1].ImageURL)
	assert.Equal(t, "https://shots.example/s1.png", captured.Messages[0].Content[1].ImageURL.URL)
}

func TestExtractJSON(t *testing.T) {
	fenced := "Here you go:\n```json\n{\"sections\":[]}\n```\nEnjoy!"
	assert.Equal(t, `{"sections":[]}`, ExtractJSON(fenced))

	bare := `noise {"sections":[{"type":"hero"}]} trailing`
	assert.Equal(t, `{"sections":[{"type":"hero"}]}`, ExtractJSON(bare))
}

func TestGeminiComplete_Success(t *testing.T) {
	var captured geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v1beta/models/gemini-2.0-flash:generateContent")
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "gemini says hi"}}}},
			},
			"usageMetadata": map[string]int{
				"promptTokenCount":     5,
				"candidatesTokenCount": 7,
				"totalTokenCount":      12,
			},
		})
	}))
	defer server.Close()

	client := NewGemini("g-key", server.URL, "", time.Second)
	resp, err := client.Complete(context.Background(), Request{
		Model: "gemini-2.0-flash",
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "prior reply"},
		},
		MaxTokens: Int(128),
	})

	require.NoError(t, err)
	assert.Equal(t, "gemini says hi", resp.Content)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)

	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "be brief", captured.SystemInstruction.Parts[0].Text)
	require.Len(t, captured.Contents, 2)
	assert.Equal(t, "model", captured.Contents[1].Role)
	require.NotNil(t, captured.GenerationConfig)
	assert.Equal(t, 128, *captured.GenerationConfig.MaxOutputTokens)
}

func TestAnthropicComplete_Success(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "a-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "claude-3-5-haiku-latest",
			"content": []map[string]string{{"type": "text", "text": "claude says hi"}},
			"usage":   map[string]int{"input_tokens": 9, "output_tokens": 4},
		})
	}))
	defer server.Close()

	client := NewAnthropic("a-key", server.URL, "", time.Second)
	resp, err := client.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "be safe"},
			{Role: RoleUser, Content: "hello"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "claude says hi", resp.Content)
	assert.Equal(t, 13, resp.Usage.TotalTokens)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)

	assert.Equal(t, "be safe", captured.System)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, anthropicDefaultMaxTokens, captured.MaxTokens)
}

func TestAnthropicComplete_CallerMaxTokensWins(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "ok"}},
			"usage":   map[string]int{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer server.Close()

	client := NewAnthropic("a-key", server.URL, "", time.Second)
	_, err := client.Complete(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "x"}},
		MaxTokens: Int(4096),
	})

	require.NoError(t, err)
	assert.Equal(t, 4096, captured.MaxTokens)
}

func TestRouter_PrefixDispatch(t *testing.T) {
	openai := NewOpenAI("k", "", "", time.Second)
	gemini := NewGemini("k", "", "", time.Second)
	anthropic := NewAnthropic("k", "", "", time.Second)
	router := NewRouter(openai, gemini, anthropic)

	c, vendor, err := router.Resolve("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, VendorOpenAI, vendor)
	assert.Same(t, openai, c)

	c, vendor, err = router.Resolve("gemini-2.0-flash")
	require.NoError(t, err)
	assert.Equal(t, VendorGemini, vendor)
	assert.Same(t, gemini, c)

	c, vendor, err = router.Resolve("claude-3-5-haiku-latest")
	require.NoError(t, err)
	assert.Equal(t, VendorAnthropic, vendor)
	assert.Same(t, anthropic, c)
}

func TestRouter_UnknownPrefixRejected(t *testing.T) {
	router := NewRouter(nil, nil, nil)
	_, _, err := router.Resolve("mistral-large")
	require.Error(t, err)
	assert.Equal(t, providers.KindUpstreamInvalid, providers.KindOf(err))
}

func TestRouter_UnconfiguredVendor(t *testing.T) {
	router := NewRouter(nil, nil, nil)
	_, vendor, err := router.Resolve("gpt-4o-mini")
	require.Error(t, err)
	assert.Equal(t, VendorOpenAI, vendor)
	assert.Equal(t, providers.KindAuth, providers.KindOf(err))
}
