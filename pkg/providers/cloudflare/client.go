// Package cloudflare implements the DNS provider client: zone lookup and
// creation, idempotent A-record management, and best-effort edge security
// defaults.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
)

const (
	providerName   = "cloudflare"
	defaultBaseURL = "https://api.cloudflare.com/client/v4"
	requestTimeout = 30 * time.Second
)

// Zone is the subset of zone data the workflows need.
type Zone struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Nameservers []string `json:"name_servers"`
}

// Client talks to the Cloudflare v4 API.
type Client struct {
	email      string
	apiKey     string
	accountID  string
	baseURL    string
	httpClient *http.Client
}

// New builds a client. baseURL may be empty.
func New(email, apiKey, accountID, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		email:      email,
		apiKey:     apiKey,
		accountID:  accountID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// envelope is the uniform Cloudflare response wrapper.
type envelope struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result json.RawMessage `json:"result"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal cloudflare request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build cloudflare request: %w", err)
	}
	req.Header.Set("X-Auth-Email", c.email)
	req.Header.Set("X-Auth-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

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
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, providers.NewError(providerName, providers.KindUpstreamInvalid,
			fmt.Sprintf("unparseable response (HTTP %d)", resp.StatusCode))
	}

	if resp.StatusCode >= 400 || !env.Success {
		message := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if len(env.Errors) > 0 {
			message = env.Errors[0].Message
		}
		status := resp.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		return nil, providers.FromStatus(providerName, status, message)
	}

	return env.Result, nil
}

// GetOrCreateZone returns the zone for domain, creating it when absent.
// Calling it twice with the same domain returns the same zone id.
func (c *Client) GetOrCreateZone(ctx context.Context, domain string) (*Zone, error) {
	result, err := c.do(ctx, http.MethodGet, "/zones?name="+url.QueryEscape(domain), nil)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}

	var existing []Zone
	if err := json.Unmarshal(result, &existing); err != nil {
		return nil, providers.NewError(providerName, providers.KindUpstreamInvalid, "unparseable zone list")
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}

	payload := map[string]any{
		"name":       domain,
		"jump_start": false,
	}
	if c.accountID != "" {
		payload["account"] = map[string]string{"id": c.accountID}
	}

	result, err = c.do(ctx, http.MethodPost, "/zones", payload)
	if err != nil {
		return nil, fmt.Errorf("create zone: %w", err)
	}

	var zone Zone
	if err := json.Unmarshal(result, &zone); err != nil {
		return nil, providers.NewError(providerName, providers.KindUpstreamInvalid, "unparseable zone")
	}
	return &zone, nil
}

type dnsRecord struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
	TTL     int    `json:"ttl"`
}

// SetARecords points name (and www.name when includeWww) at the given IPs.
// The operation is idempotent: existing A records for each target name are
// deleted before the new proxied records are created.
func (c *Client) SetARecords(ctx context.Context, zoneID, name string, ips []string, includeWww bool) error {
	if len(ips) == 0 {
		return providers.NewError(providerName, providers.KindUpstreamInvalid, "no IPs to set")
	}

	targets := []string{name}
	if includeWww {
		targets = append(targets, "www."+name)
	}

	for _, target := range targets {
		if err := c.deleteARecords(ctx, zoneID, target); err != nil {
			return err
		}
		for _, ip := range ips {
			record := dnsRecord{
				Type:    "A",
				Name:    target,
				Content: ip,
				Proxied: true,
				TTL:     1,
			}
			if _, err := c.do(ctx, http.MethodPost,
				fmt.Sprintf("/zones/%s/dns_records", zoneID), record); err != nil {
				return fmt.Errorf("create A record %s -> %s: %w", target, ip, err)
			}
		}
	}
	return nil
}

func (c *Client) deleteARecords(ctx context.Context, zoneID, name string) error {
	result, err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/zones/%s/dns_records?type=A&name=%s", zoneID, url.QueryEscape(name)), nil)
	if err != nil {
		return fmt.Errorf("list A records for %s: %w", name, err)
	}

	var records []dnsRecord
	if err := json.Unmarshal(result, &records); err != nil {
		return providers.NewError(providerName, providers.KindUpstreamInvalid, "unparseable record list")
	}

	for _, record := range records {
		if _, err := c.do(ctx, http.MethodDelete,
			fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, record.ID), nil); err != nil {
			return fmt.Errorf("delete A record %s: %w", record.ID, err)
		}
	}
	return nil
}

// ListARecords returns the current A records for name in the zone. Used by
// tests and the propagation endpoint.
func (c *Client) ListARecords(ctx context.Context, zoneID, name string) ([]string, error) {
	result, err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/zones/%s/dns_records?type=A&name=%s", zoneID, url.QueryEscape(name)), nil)
	if err != nil {
		return nil, err
	}
	var records []dnsRecord
	if err := json.Unmarshal(result, &records); err != nil {
		return nil, providers.NewError(providerName, providers.KindUpstreamInvalid, "unparseable record list")
	}
	ips := make([]string, 0, len(records))
	for _, r := range records {
		ips = append(ips, r.Content)
	}
	return ips, nil
}
