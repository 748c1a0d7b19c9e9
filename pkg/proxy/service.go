// Package proxy is the multi-tenant, OpenAI-compatible AI gateway: bearer
// key auth, monthly token quotas, per-tier model policy, prefix dispatch
// to the vendor clients, and asynchronous request accounting.
package proxy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MisreadableMind/word-to-site-ai/pkg/ai"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
	"github.com/MisreadableMind/word-to-site-ai/pkg/store"
)

// proxyRetryAttempts is the upstream call budget: one initial call plus at
// most two retries, transient kinds only.
const proxyRetryAttempts = 3

const chatEndpoint = "/v1/chat/completions"

// Gateway error types, straight out of the OpenAI error envelope plus our
// quota and policy extensions.
const (
	ErrTypeInvalidRequest  = "invalid_request_error"
	ErrTypeAuthentication  = "authentication_error"
	ErrTypeQuotaExceeded   = "quota_exceeded"
	ErrTypeModelNotAllowed = "model_not_allowed"
	ErrTypeUpstream        = "upstream_error"
	ErrTypeInternal        = "api_error"
)

// Error is a gateway failure that maps straight onto an HTTP status and
// the OpenAI error envelope. Quota failures carry the usage snapshot.
type Error struct {
	Status  int
	Type    string
	Message string
	Usage   *models.UsageSnapshot
}

func (e *Error) Error() string {
	return e.Message
}

// AsGatewayError unwraps err into *Error when it is one.
func AsGatewayError(err error) (*Error, bool) {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}

func errUnauthorized() *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Type:    ErrTypeAuthentication,
		Message: "invalid or revoked API key",
	}
}

// ChatRequest is the inbound OpenAI-compatible completion request.
type ChatRequest struct {
	Model       string       `json:"model"`
	Messages    []ai.Message `json:"messages"`
	MaxTokens   *int         `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
}

// Completion is the outbound OpenAI completion envelope. Every vendor's
// reply is normalized into this shape.
type Completion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   ai.Usage `json:"usage"`
}

// Choice is one completion alternative; the gateway always returns
// exactly one.
type Choice struct {
	Index        int        `json:"index"`
	Message      ai.Message `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// ModelInfo is one entry of the /v1/models list envelope.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the OpenAI list envelope.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// Store is the slice of persistence the gateway reads.
type Store interface {
	GetProxySiteByKey(ctx context.Context, apiKey string) (*models.ProxySite, error)
	GetTier(ctx context.Context, tier string) (*models.SubscriptionTier, error)
	MonthTokenUsage(ctx context.Context, siteID string, now time.Time) (int64, error)
}

// Logger records request accounting without blocking the request path.
// *LogWorker implements it.
type Logger interface {
	Log(entry models.RequestLogEntry)
}

// Gateway serves the tenant-facing proxy operations.
type Gateway struct {
	store  Store
	router *ai.Router
	logs   Logger
	now    func() time.Time
}

// NewGateway wires the gateway. logs may be nil, disabling accounting.
func NewGateway(st Store, router *ai.Router, logs Logger) *Gateway {
	return &Gateway{
		store:  st,
		router: router,
		logs:   logs,
		now:    time.Now,
	}
}

// Authenticate resolves a bearer key to its active site. Malformed,
// unknown and revoked keys are indistinguishable to the caller.
func (g *Gateway) Authenticate(ctx context.Context, apiKey string) (*models.ProxySite, error) {
	if !ValidKeyFormat(apiKey) {
		return nil, errUnauthorized()
	}
	site, err := g.store.GetProxySiteByKey(ctx, apiKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errUnauthorized()
	}
	if err != nil {
		return nil, &Error{Status: http.StatusInternalServerError, Type: ErrTypeInternal,
			Message: "key lookup failed"}
	}
	if site.Status != models.SiteStatusActive {
		return nil, errUnauthorized()
	}
	return site, nil
}

// Chat runs one completion through the full pipeline: authenticate,
// quota, model policy, vendor dispatch, accounting. The request is never
// streamed and tenant content is never persisted; only token counts and
// metadata reach the log.
func (g *Gateway) Chat(ctx context.Context, apiKey string, req ChatRequest) (*Completion, error) {
	site, err := g.Authenticate(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	if req.Model == "" {
		return nil, &Error{Status: http.StatusBadRequest, Type: ErrTypeInvalidRequest,
			Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return nil, &Error{Status: http.StatusBadRequest, Type: ErrTypeInvalidRequest,
			Message: "messages must not be empty"}
	}

	// Quota: current-month token sum against the site's limit. An
	// accounting outage lets traffic through rather than blocking every
	// tenant on our own infrastructure.
	used, err := g.store.MonthTokenUsage(ctx, site.ID, g.now())
	if err != nil {
		slog.Error("Quota check failed, allowing request",
			"site_id", site.ID,
			"error", err)
	} else if used >= site.MonthlyTokenLimit {
		slog.Info("Monthly quota exhausted",
			"site_id", site.ID,
			"domain", site.Domain,
			"used", used,
			"limit", site.MonthlyTokenLimit)
		return nil, &Error{
			Status:  http.StatusTooManyRequests,
			Type:    ErrTypeQuotaExceeded,
			Message: "monthly token quota exhausted",
			Usage:   &models.UsageSnapshot{Used: used, Limit: site.MonthlyTokenLimit, Remaining: 0},
		}
	}

	// Model policy: the tier whitelists model ids. Same fail-open stance
	// for lookup outages; the tier row itself is guaranteed by the fk.
	tier, err := g.store.GetTier(ctx, site.SubscriptionTier)
	if err != nil {
		slog.Error("Tier lookup failed, allowing request",
			"site_id", site.ID,
			"tier", site.SubscriptionTier,
			"error", err)
	} else if !tier.AllowsModel(req.Model) {
		g.log(site, req.Model, "", http.StatusForbidden, 0, ai.Usage{},
			fmt.Sprintf("model not allowed on tier %s", site.SubscriptionTier))
		return nil, &Error{
			Status:  http.StatusForbidden,
			Type:    ErrTypeModelNotAllowed,
			Message: fmt.Sprintf("model %s is not available on the %s tier", req.Model, site.SubscriptionTier),
		}
	}

	completer, vendor, err := g.router.Resolve(req.Model)
	if err != nil {
		if providers.KindOf(err) == providers.KindAuth {
			// Known prefix, vendor not configured on this deployment.
			g.log(site, req.Model, vendor, http.StatusBadGateway, 0, ai.Usage{}, err.Error())
			return nil, &Error{Status: http.StatusBadGateway, Type: ErrTypeUpstream,
				Message: fmt.Sprintf("%s is not configured", vendor)}
		}
		return nil, &Error{Status: http.StatusBadRequest, Type: ErrTypeInvalidRequest,
			Message: "unsupported model: " + req.Model}
	}

	start := g.now()
	var resp *ai.Response
	err = providers.RetryAttempts(ctx, "proxy:"+vendor, proxyRetryAttempts, func() error {
		r, callErr := completer.Complete(ctx, ai.Request{
			Model:       req.Model,
			Messages:    req.Messages,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
		if callErr != nil {
			return callErr
		}
		resp = r
		return nil
	})
	latency := time.Since(start).Milliseconds()

	if err != nil {
		// The log keeps the vendor's own status; the tenant always sees
		// a 502 so upstream auth failures can't be confused with key
		// problems on our side.
		upstreamStatus := http.StatusBadGateway
		if perr, ok := providers.AsError(err); ok && perr.HTTPStatus > 0 {
			upstreamStatus = perr.HTTPStatus
		}
		g.log(site, req.Model, vendor, upstreamStatus, latency, ai.Usage{}, err.Error())
		slog.Warn("Upstream completion failed",
			"site_id", site.ID,
			"vendor", vendor,
			"model", req.Model,
			"status", upstreamStatus,
			"error", err)
		return nil, &Error{Status: http.StatusBadGateway, Type: ErrTypeUpstream,
			Message: "upstream request failed"}
	}

	g.log(site, req.Model, vendor, http.StatusOK, latency, resp.Usage, "")

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return &Completion{
		ID:      completionID(),
		Object:  "chat.completion",
		Created: g.now().Unix(),
		Model:   model,
		Choices: []Choice{{
			Index:        0,
			Message:      ai.Message{Role: ai.RoleAssistant, Content: resp.Content},
			FinishReason: "stop",
		}},
		Usage: resp.Usage,
	}, nil
}

// Models lists the models the site's tier allows, in the OpenAI list
// envelope.
func (g *Gateway) Models(ctx context.Context, apiKey string) (*ModelList, error) {
	site, err := g.Authenticate(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	tier, err := g.store.GetTier(ctx, site.SubscriptionTier)
	if err != nil {
		return nil, &Error{Status: http.StatusInternalServerError, Type: ErrTypeInternal,
			Message: "tier lookup failed"}
	}

	list := &ModelList{Object: "list", Data: make([]ModelInfo, 0, len(tier.AllowedModels))}
	for _, id := range tier.AllowedModels {
		_, vendor, _ := g.router.Resolve(id)
		if vendor == "" {
			vendor = "system"
		}
		list.Data = append(list.Data, ModelInfo{ID: id, Object: "model", OwnedBy: vendor})
	}
	return list, nil
}

// Usage returns the authenticated site's current-month snapshot.
func (g *Gateway) Usage(ctx context.Context, apiKey string) (*models.UsageSnapshot, error) {
	site, err := g.Authenticate(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	used, err := g.store.MonthTokenUsage(ctx, site.ID, g.now())
	if err != nil {
		return nil, &Error{Status: http.StatusInternalServerError, Type: ErrTypeInternal,
			Message: "usage lookup failed"}
	}
	return Snapshot(used, site.MonthlyTokenLimit), nil
}

// Snapshot folds a usage sum and a limit into the wire shape. Remaining
// never goes negative.
func Snapshot(used, limit int64) *models.UsageSnapshot {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &models.UsageSnapshot{Used: used, Limit: limit, Remaining: remaining}
}

func (g *Gateway) log(site *models.ProxySite, model, vendor string, status int, latencyMS int64, usage ai.Usage, errMsg string) {
	if g.logs == nil {
		return
	}
	g.logs.Log(models.RequestLogEntry{
		SiteID:           site.ID,
		Domain:           site.Domain,
		Provider:         vendor,
		Model:            model,
		Endpoint:         chatEndpoint,
		Method:           http.MethodPost,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		ResponseStatus:   status,
		LatencyMS:        latencyMS,
		ErrorMessage:     errMsg,
		RequestedAt:      g.now().UTC(),
	})
}

// completionID mints the envelope id: chatcmpl- plus 24 hex characters.
func completionID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "chatcmpl-" + hex.EncodeToString(buf)
}
