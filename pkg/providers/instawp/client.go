// Package instawp wraps the InstaWP hosting API: site creation, readiness
// polling, domain mapping and SSL status.
package instawp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
)

const (
	providerName   = "instawp"
	defaultBaseURL = "https://app.instawp.io/api/v2"

	requestTimeout = 60 * time.Second

	// DefaultReadyBudget and DefaultPollInterval bound the readiness
	// poll loop for a freshly created site.
	DefaultReadyBudget  = 300 * time.Second
	DefaultPollInterval = 10 * time.Second

	// readyProbeAttempts caps the HEAD probes fired after the API says
	// the site is up. If every probe fails we trust the API anyway,
	// since DNS or TLS may still be propagating.
	readyProbeAttempts = 6
)

// probeDelay is a var so tests can collapse the wait between probes.
var probeDelay = 2 * time.Second

// Default site parameters applied when the caller leaves them unset.
const (
	defaultWPVersion  = "6.8.1"
	defaultPHPVersion = "8.0"
	defaultPlanID     = 2
)

// Client talks to the InstaWP API with bearer auth.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// envelope is the {status, message, data} wrapper on every response.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal instawp request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build instawp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providers.FromTransport(providerName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.FromTransport(providerName, err)
	}

	var env envelope
	parseable := json.Unmarshal(raw, &env) == nil

	if resp.StatusCode >= 400 {
		message := strings.TrimSpace(string(raw))
		if parseable && env.Message != "" {
			message = env.Message
		}
		return nil, providers.FromStatus(providerName, resp.StatusCode, message)
	}
	if !parseable {
		return nil, providers.NewError(providerName, providers.KindUpstreamInvalid, "unparseable host response")
	}
	if !env.Status {
		message := env.Message
		if message == "" {
			message = "host reported failure"
		}
		return nil, providers.NewError(providerName, providers.KindUpstreamInvalid, message)
	}
	return env.Data, nil
}

// flexStatus tolerates the API flip-flopping between numeric and string
// site statuses.
type flexStatus string

func (s *flexStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexStatus(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = flexStatus(num.String())
		return nil
	}
	return fmt.Errorf("unexpected site status %s", string(data))
}

// ready reports whether the status means the site is serving. Numeric 0
// and the literals "active" and "running" all count.
func (s flexStatus) ready() bool {
	switch strings.ToLower(string(s)) {
	case "0", "active", "running":
		return true
	default:
		return false
	}
}

type sitePayload struct {
	ID         json.Number `json:"id"`
	WpURL      string      `json:"wp_url"`
	WpUsername string      `json:"wp_username"`
	WpPassword string      `json:"wp_password"`
	Status     flexStatus  `json:"status"`
}

func (p sitePayload) toModel() *models.ProvisionedSite {
	return &models.ProvisionedSite{
		ID:         p.ID.String(),
		WpURL:      p.WpURL,
		WpUsername: p.WpUsername,
		WpPassword: p.WpPassword,
	}
}

// CreateSiteOptions shape the new site. Zero values fall back to the
// platform defaults.
type CreateSiteOptions struct {
	SiteName     string
	TemplateSlug string
	WPVersion    string
	PHPVersion   string
	PlanID       int
	Reserved     *bool
}

// CreateSite provisions a new WordPress instance and returns its id,
// URL and admin credentials.
func (c *Client) CreateSite(ctx context.Context, opts CreateSiteOptions) (*models.ProvisionedSite, error) {
	reserved := true
	if opts.Reserved != nil {
		reserved = *opts.Reserved
	}
	body := map[string]any{
		"site_name":   opts.SiteName,
		"wp_version":  valueOrDefault(opts.WPVersion, defaultWPVersion),
		"php_version": valueOrDefault(opts.PHPVersion, defaultPHPVersion),
		"plan_id":     intOrDefault(opts.PlanID, defaultPlanID),
		"is_reserved": reserved,
	}
	if opts.TemplateSlug != "" {
		body["template_slug"] = opts.TemplateSlug
	}

	data, err := c.do(ctx, http.MethodPost, "/sites", body)
	if err != nil {
		return nil, fmt.Errorf("create site: %w", err)
	}

	var payload sitePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, providers.NewError(providerName, providers.KindUpstreamInvalid, "unparseable site payload")
	}
	site := payload.toModel()
	if site.ID == "" || site.WpURL == "" {
		return nil, providers.NewError(providerName, providers.KindUpstreamInvalid, "site payload missing id or url")
	}
	return site, nil
}

// GetSite fetches the current state of a site.
func (c *Client) GetSite(ctx context.Context, siteID string) (*models.ProvisionedSite, bool, error) {
	data, err := c.do(ctx, http.MethodGet, "/sites/"+siteID, nil)
	if err != nil {
		return nil, false, fmt.Errorf("get site %s: %w", siteID, err)
	}
	var payload sitePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false, providers.NewError(providerName, providers.KindUpstreamInvalid, "unparseable site payload")
	}
	return payload.toModel(), payload.Status.ready(), nil
}

// WaitUntilReady polls the site until the API reports it serving, then
// confirms with HEAD probes against the site URL. Any probe response
// below 400 counts as alive; if all probes fail the API's word is
// trusted and the site is returned anyway.
func (c *Client) WaitUntilReady(ctx context.Context, siteID string, budget, interval time.Duration) (*models.ProvisionedSite, error) {
	if budget <= 0 {
		budget = DefaultReadyBudget
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.Now().Add(budget)
	for {
		site, ready, err := c.GetSite(ctx, siteID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if ready {
			c.probeSite(ctx, site.WpURL)
			return site, nil
		}

		if time.Now().After(deadline) {
			return nil, providers.NewError(providerName, providers.KindTimeout,
				fmt.Sprintf("site %s not ready within %s", siteID, budget))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// probeSite fires up to readyProbeAttempts HEAD requests at the site.
func (c *Client) probeSite(ctx context.Context, siteURL string) {
	if siteURL == "" {
		return
	}
	for attempt := 1; attempt <= readyProbeAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, siteURL, nil)
		if err != nil {
			return
		}
		resp, err := c.httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 400 {
				return
			}
		}
		if attempt == readyProbeAttempts {
			slog.Warn("Site probe never succeeded, trusting API readiness",
				"url", siteURL,
				"attempts", readyProbeAttempts)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(probeDelay):
		}
	}
}

// MapDomainOptions control alias handling during domain mapping.
type MapDomainOptions struct {
	Www      bool
	RouteWww bool
}

// MapDomain attaches the domain to the site and returns the A-record
// IPs the host expects DNS to point at. An empty list is an error the
// caller must treat as fatal.
func (c *Client) MapDomain(ctx context.Context, siteID, domain string, opts MapDomainOptions) ([]string, error) {
	body := map[string]any{
		"name":      domain,
		"www":       opts.Www,
		"route_www": opts.RouteWww,
	}
	data, err := c.do(ctx, http.MethodPost, "/sites/"+siteID+"/map-domain", body)
	if err != nil {
		return nil, fmt.Errorf("map domain %s: %w", domain, err)
	}

	var payload struct {
		ARecords []string `json:"a_records"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, providers.NewError(providerName, providers.KindUpstreamInvalid, "unparseable domain mapping payload")
	}
	return payload.ARecords, nil
}

// CheckSSLStatus reports certificate state for a mapped domain.
func (c *Client) CheckSSLStatus(ctx context.Context, siteID string) (*models.SSLStatus, error) {
	data, err := c.do(ctx, http.MethodGet, "/sites/"+siteID+"/ssl", nil)
	if err != nil {
		return nil, fmt.Errorf("check ssl for site %s: %w", siteID, err)
	}
	var payload struct {
		Enabled bool   `json:"enabled"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, providers.NewError(providerName, providers.KindUpstreamInvalid, "unparseable ssl payload")
	}
	return &models.SSLStatus{Enabled: payload.Enabled, Status: payload.Status}, nil
}

func valueOrDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}
