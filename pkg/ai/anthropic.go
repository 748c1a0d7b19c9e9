package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"

	// Anthropic requires max_tokens; this is the fallback when the caller
	// does not set one.
	anthropicDefaultMaxTokens = 1024
)

// AnthropicClient speaks the Anthropic messages API. System messages are
// hoisted into the top-level system field.
type AnthropicClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

var _ Completer = (*AnthropicClient)(nil)

// NewAnthropic builds a client. baseURL and defaultModel may be empty.
func NewAnthropic(apiKey, baseURL, defaultModel string, timeout time.Duration) *AnthropicClient {
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	if defaultModel == "" {
		defaultModel = "claude-3-5-haiku-latest"
	}
	return &AnthropicClient{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultModel: defaultModel,
		httpClient:   newHTTPClient(timeout),
	}
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// translateToAnthropic hoists system messages into one system string and
// returns the remaining conversation turns.
func translateToAnthropic(messages []Message) (system string, rest []Message) {
	var systemParts []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(systemParts, "\n\n"), rest
}

// Complete sends the request and normalizes the response.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, providers.NewError(VendorAnthropic, providers.KindAuth, "ANTHROPIC_API_KEY is not configured")
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	maxTokens := anthropicDefaultMaxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	}

	system, rest := translateToAnthropic(req.Messages)

	body, err := json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    rest,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.FromTransport(VendorAnthropic, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.FromTransport(VendorAnthropic, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, providers.FromStatus(VendorAnthropic, resp.StatusCode, vendorErrorMessage(raw))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, providers.NewError(VendorAnthropic, providers.KindUpstreamInvalid,
			fmt.Sprintf("unparseable response: %v", err))
	}
	if len(parsed.Content) == 0 {
		return nil, providers.NewError(VendorAnthropic, providers.KindUpstreamInvalid, "response has no content blocks")
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Content: text.String(),
		Model:   firstNonEmpty(parsed.Model, model),
		Usage: Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}
