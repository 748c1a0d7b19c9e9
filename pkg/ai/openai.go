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

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIClient speaks the OpenAI chat completions API. Messages pass through
// verbatim.
type OpenAIClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

var _ Completer = (*OpenAIClient)(nil)

// NewOpenAI builds a client. baseURL and defaultModel may be empty.
func NewOpenAI(apiKey, baseURL, defaultModel string, timeout time.Duration) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &OpenAIClient{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultModel: defaultModel,
		httpClient:   newHTTPClient(timeout),
	}
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the chat request and normalizes the response.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, providers.NewError(VendorOpenAI, providers.KindAuth, "OPENAI_API_KEY is not configured")
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	body, err := json.Marshal(openAIRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}
	return c.send(ctx, body, model)
}

type openAIContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type openAIVisionMessage struct {
	Role    string              `json:"role"`
	Content []openAIContentPart `json:"content"`
}

var _ VisionCompleter = (*OpenAIClient)(nil)

// CompleteVision sends one user turn carrying a prompt and an image.
func (c *OpenAIClient) CompleteVision(ctx context.Context, req VisionRequest) (*Response, error) {
	if c.apiKey == "" {
		return nil, providers.NewError(VendorOpenAI, providers.KindAuth, "OPENAI_API_KEY is not configured")
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	image := openAIContentPart{Type: "image_url"}
	image.ImageURL = &struct {
		URL string `json:"url"`
	}{URL: req.ImageURL}

	body, err := json.Marshal(struct {
		Model     string                `json:"model"`
		Messages  []openAIVisionMessage `json:"messages"`
		MaxTokens *int                  `json:"max_tokens,omitempty"`
	}{
		Model: model,
		Messages: []openAIVisionMessage{{
			Role:    RoleUser,
			Content: []openAIContentPart{{Type: "text", Text: req.Prompt}, image},
		}},
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal openai vision request: %w", err)
	}
	return c.send(ctx, body, model)
}

func (c *OpenAIClient) send(ctx context.Context, body []byte, model string) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.FromTransport(VendorOpenAI, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.FromTransport(VendorOpenAI, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, providers.FromStatus(VendorOpenAI, resp.StatusCode, vendorErrorMessage(raw))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, providers.NewError(VendorOpenAI, providers.KindUpstreamInvalid,
			fmt.Sprintf("unparseable response: %v", err))
	}
	if len(parsed.Choices) == 0 {
		return nil, providers.NewError(VendorOpenAI, providers.KindUpstreamInvalid, "response has no choices")
	}

	return &Response{
		Content: parsed.Choices[0].Message.Content,
		Model:   firstNonEmpty(parsed.Model, model),
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// vendorErrorMessage pulls the human-readable message out of the standard
// `{"error":{"message":...}}` envelope the three vendors share; falls back
// to the raw body.
func vendorErrorMessage(raw []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
