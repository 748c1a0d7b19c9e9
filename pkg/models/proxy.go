package models

import "time"

// Proxy site statuses.
const (
	SiteStatusActive  = "active"
	SiteStatusRevoked = "revoked"
)

// ProxySite is one tenant of the AI proxy: a domain bound to an opaque API
// key, a subscription tier, and a monthly token budget.
type ProxySite struct {
	ID                string     `json:"id"`
	Domain            string     `json:"domain"`
	APIKey            string     `json:"api_key"`
	Label             string     `json:"label,omitempty"`
	Status            string     `json:"status"`
	SubscriptionTier  string     `json:"subscription_tier"`
	MonthlyTokenLimit int64      `json:"monthly_token_limit"`
	CreatedAt         time.Time  `json:"created_at"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
}

// SubscriptionTier bounds what a proxy site may spend and call.
type SubscriptionTier struct {
	Tier              string   `json:"tier"`
	DisplayName       string   `json:"display_name"`
	MonthlyTokenLimit int64    `json:"monthly_token_limit"`
	AllowedModels     []string `json:"allowed_models"`
	RateLimitRPM      int      `json:"rate_limit_rpm"`
}

// AllowsModel reports whether the tier permits the given model id.
func (t SubscriptionTier) AllowsModel(model string) bool {
	for _, m := range t.AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}

// RequestLogEntry is one append-only row of proxy traffic accounting.
type RequestLogEntry struct {
	ID               int64     `json:"id,omitempty"`
	SiteID           string    `json:"site_id"`
	Domain           string    `json:"domain"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	Endpoint         string    `json:"endpoint"`
	Method           string    `json:"method"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	ResponseStatus   int       `json:"response_status"`
	LatencyMS        int64     `json:"latency_ms"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	RequestedAt      time.Time `json:"requested_at"`
}

// UsageSnapshot is the current-month token accounting for one site.
type UsageSnapshot struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}
