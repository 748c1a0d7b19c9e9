package ai

import (
	"strings"

	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
)

// Router resolves a model id to the vendor client that serves it.
type Router struct {
	openai    Completer
	gemini    Completer
	anthropic Completer
}

// NewRouter wires the three vendor clients. Any client may be nil when the
// vendor is not configured; resolving to a nil client returns an auth error.
func NewRouter(openai, gemini, anthropic Completer) *Router {
	return &Router{openai: openai, gemini: gemini, anthropic: anthropic}
}

// Resolve picks the vendor by model prefix: gpt-* → OpenAI, gemini-* →
// Google, claude-* → Anthropic. Unknown prefixes are an upstream-invalid
// error so callers can map them to HTTP 400.
func (r *Router) Resolve(model string) (Completer, string, error) {
	switch {
	case strings.HasPrefix(model, "gpt-"):
		return r.client(r.openai, VendorOpenAI)
	case strings.HasPrefix(model, "gemini-"):
		return r.client(r.gemini, VendorGemini)
	case strings.HasPrefix(model, "claude-"):
		return r.client(r.anthropic, VendorAnthropic)
	default:
		return nil, "", providers.NewError("router", providers.KindUpstreamInvalid,
			"unsupported model: "+model)
	}
}

func (r *Router) client(c Completer, vendor string) (Completer, string, error) {
	if c == nil {
		return nil, vendor, providers.NewError(vendor, providers.KindAuth,
			vendor+" is not configured")
	}
	return c, vendor, nil
}
