// Package ai provides typed clients for the three supported AI vendors and
// a prefix router used by the proxy and the content pipelines.
//
// All clients normalize vendor responses to the same Response shape; usage
// is always reported as prompt/completion/total regardless of what the
// vendor calls those fields.
package ai

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Vendor names recorded in request logs and routing decisions.
const (
	VendorOpenAI    = "openai"
	VendorGemini    = "gemini"
	VendorAnthropic = "anthropic"
)

// DefaultTimeout bounds one completion round trip.
const DefaultTimeout = 60 * time.Second

// Chat roles shared across vendors (Gemini's "model" role is translated
// inside the Gemini client).
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the normalized token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a vendor-neutral completion request. Model may be empty, in
// which case the client's configured default is used. MaxTokens and
// Temperature are optional.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   *int
	Temperature *float64
}

// Response is the normalized completion result.
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Completer is the single operation every vendor client implements.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// VisionRequest asks a vision-capable model to look at one image.
// ImageURL is a fetchable https URL or a data: URL.
type VisionRequest struct {
	Model     string
	Prompt    string
	ImageURL  string
	MaxTokens *int
}

// VisionCompleter is implemented by clients that accept image input
// alongside text.
type VisionCompleter interface {
	CompleteVision(ctx context.Context, req VisionRequest) (*Response, error)
}

var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON recovers the JSON document from a model reply: peels a
// markdown code fence when present, otherwise slices from the first {
// to the last }. Models wrap structured output inconsistently; parsers
// should run replies through this before unmarshalling.
func ExtractJSON(reply string) string {
	if m := jsonFenceRe.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start >= 0 && end > start {
		return reply[start : end+1]
	}
	return strings.TrimSpace(reply)
}

// Int returns a pointer to n, for optional request fields.
func Int(n int) *int { return &n }

// Float returns a pointer to f, for optional request fields.
func Float(f float64) *float64 { return &f }

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
