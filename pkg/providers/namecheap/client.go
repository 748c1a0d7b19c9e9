// Package namecheap wraps the Namecheap XML API for domain registration.
//
// Every call is a form-encoded GET against a single endpoint; the command
// and credentials travel as query parameters and the response is an
// ApiResponse XML envelope with Status="OK" or Status="ERROR".
package namecheap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
)

const (
	providerName = "namecheap"

	productionBaseURL = "https://api.namecheap.com/xml.response"
	sandboxBaseURL    = "https://api.sandbox.namecheap.com/xml.response"

	requestTimeout = 30 * time.Second
)

// contactRoles are the four contact blocks the create command requires.
// Namecheap rejects registrations missing any of them, so the same
// contact record is fanned out to all four.
var contactRoles = []string{"Registrant", "Tech", "Admin", "AuxBilling"}

// Config carries the registrar credentials. ClientIP is mandatory on
// every Namecheap call and must be allow-listed in the account.
type Config struct {
	APIKey   string
	Username string
	ClientIP string
	Sandbox  bool
	BaseURL  string // overrides the sandbox switch when set
}

// Client talks to the Namecheap XML API.
type Client struct {
	apiKey     string
	username   string
	clientIP   string
	baseURL    string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Sandbox {
			baseURL = sandboxBaseURL
		} else {
			baseURL = productionBaseURL
		}
	}
	return &Client{
		apiKey:     cfg.APIKey,
		username:   cfg.Username,
		clientIP:   cfg.ClientIP,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type apiError struct {
	Number  string `xml:"Number,attr"`
	Message string `xml:",chardata"`
}

// envelope is the shared outer shape of every ApiResponse document.
type envelope struct {
	Status string     `xml:"Status,attr"`
	Errors []apiError `xml:"Errors>Error"`
}

func (e envelope) err() error {
	if !strings.EqualFold(e.Status, "ERROR") && len(e.Errors) == 0 {
		return nil
	}
	message := "registrar command failed"
	number := ""
	if len(e.Errors) > 0 {
		message = strings.TrimSpace(e.Errors[0].Message)
		number = e.Errors[0].Number
	}
	return providers.NewError(providerName, classifyAPIError(number, message), message)
}

// classifyAPIError maps Namecheap error numbers onto the shared error
// kinds. The 10xxxxx range covers credential and parameter failures.
func classifyAPIError(number, message string) providers.Kind {
	lower := strings.ToLower(message)
	switch {
	case strings.HasPrefix(number, "10"), strings.Contains(lower, "api key"), strings.Contains(lower, "invalid request ip"):
		return providers.KindAuth
	case strings.Contains(lower, "not found"):
		return providers.KindNotFound
	case strings.Contains(lower, "already"):
		return providers.KindConflict
	default:
		return providers.KindUpstreamInvalid
	}
}

func (c *Client) call(ctx context.Context, command string, params url.Values, out any) error {
	query := url.Values{}
	query.Set("ApiUser", c.username)
	query.Set("ApiKey", c.apiKey)
	query.Set("UserName", c.username)
	query.Set("ClientIp", c.clientIP)
	query.Set("Command", command)
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build registrar request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return providers.FromTransport(providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.FromTransport(providerName, err)
	}
	if resp.StatusCode >= 400 {
		return providers.FromStatus(providerName, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return providers.NewError(providerName, providers.KindUpstreamInvalid, "unparseable registrar response")
	}
	return nil
}

// CheckResult reports availability for a single domain.
type CheckResult struct {
	Domain       string  `json:"domain"`
	Available    bool    `json:"available"`
	Premium      bool    `json:"premium"`
	PremiumPrice float64 `json:"premiumPrice,omitempty"`
}

// Check queries namecheap.domains.check for one domain.
func (c *Client) Check(ctx context.Context, domain string) (*CheckResult, error) {
	params := url.Values{}
	params.Set("DomainList", domain)

	var resp struct {
		envelope
		Result struct {
			Domain                   string  `xml:"Domain,attr"`
			Available                bool    `xml:"Available,attr"`
			IsPremiumName            bool    `xml:"IsPremiumName,attr"`
			PremiumRegistrationPrice float64 `xml:"PremiumRegistrationPrice,attr"`
		} `xml:"CommandResponse>DomainCheckResult"`
	}
	if err := c.call(ctx, "namecheap.domains.check", params, &resp); err != nil {
		return nil, fmt.Errorf("check domain %s: %w", domain, err)
	}
	if err := resp.err(); err != nil {
		return nil, fmt.Errorf("check domain %s: %w", domain, err)
	}

	return &CheckResult{
		Domain:       resp.Result.Domain,
		Available:    resp.Result.Available,
		Premium:      resp.Result.IsPremiumName,
		PremiumPrice: resp.Result.PremiumRegistrationPrice,
	}, nil
}

// RegisterResult is the outcome of a successful domain registration.
type RegisterResult struct {
	Domain        string  `json:"domain"`
	Registered    bool    `json:"registered"`
	ChargedAmount float64 `json:"chargedAmount"`
	DomainID      string  `json:"domainId"`
	OrderID       string  `json:"orderId"`
	TransactionID string  `json:"transactionId"`
}

// Register purchases the domain for the given number of years. The one
// contact record fills all four roles Namecheap requires, so it must be
// complete before the call goes out.
func (c *Client) Register(ctx context.Context, domain string, years int, contact models.RegistrantContact) (*RegisterResult, error) {
	if err := models.ValidateStruct(&contact); err != nil {
		return nil, fmt.Errorf("registrant contact: %w", err)
	}
	if years < 1 {
		years = 1
	}

	params := url.Values{}
	params.Set("DomainName", domain)
	params.Set("Years", fmt.Sprintf("%d", years))
	params.Set("AddFreeWhoisguard", "yes")
	params.Set("WGEnabled", "yes")
	for _, role := range contactRoles {
		params.Set(role+"FirstName", contact.FirstName)
		params.Set(role+"LastName", contact.LastName)
		params.Set(role+"Address1", contact.Address1)
		params.Set(role+"City", contact.City)
		params.Set(role+"StateProvince", contact.StateProvince)
		params.Set(role+"PostalCode", contact.PostalCode)
		params.Set(role+"Country", contact.Country)
		params.Set(role+"Phone", contact.Phone)
		params.Set(role+"EmailAddress", contact.Email)
		if contact.Organization != "" {
			params.Set(role+"OrganizationName", contact.Organization)
		}
	}

	var resp struct {
		envelope
		Result struct {
			Domain        string  `xml:"Domain,attr"`
			Registered    bool    `xml:"Registered,attr"`
			ChargedAmount float64 `xml:"ChargedAmount,attr"`
			DomainID      string  `xml:"DomainID,attr"`
			OrderID       string  `xml:"OrderID,attr"`
			TransactionID string  `xml:"TransactionID,attr"`
		} `xml:"CommandResponse>DomainCreateResult"`
	}
	if err := c.call(ctx, "namecheap.domains.create", params, &resp); err != nil {
		return nil, fmt.Errorf("register domain %s: %w", domain, err)
	}
	if err := resp.err(); err != nil {
		return nil, fmt.Errorf("register domain %s: %w", domain, err)
	}
	if !resp.Result.Registered {
		return nil, providers.NewError(providerName, providers.KindUpstreamFailure, "registration not confirmed")
	}

	return &RegisterResult{
		Domain:        resp.Result.Domain,
		Registered:    resp.Result.Registered,
		ChargedAmount: resp.Result.ChargedAmount,
		DomainID:      resp.Result.DomainID,
		OrderID:       resp.Result.OrderID,
		TransactionID: resp.Result.TransactionID,
	}, nil
}

// SetCustomNameservers points the domain at the given nameservers,
// typically the pair handed back by the DNS provider's zone.
func (c *Client) SetCustomNameservers(ctx context.Context, domain string, nameservers []string) error {
	if len(nameservers) == 0 {
		return providers.NewError(providerName, providers.KindUpstreamInvalid, "no nameservers to set")
	}
	sld, tld, err := splitDomain(domain)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("SLD", sld)
	params.Set("TLD", tld)
	params.Set("Nameservers", strings.Join(nameservers, ","))

	var resp struct {
		envelope
		Result struct {
			Domain  string `xml:"Domain,attr"`
			Updated bool   `xml:"Updated,attr"`
		} `xml:"CommandResponse>DomainDNSSetCustomResult"`
	}
	if err := c.call(ctx, "namecheap.domains.dns.setCustom", params, &resp); err != nil {
		return fmt.Errorf("set nameservers for %s: %w", domain, err)
	}
	if err := resp.err(); err != nil {
		return fmt.Errorf("set nameservers for %s: %w", domain, err)
	}
	if !resp.Result.Updated {
		return providers.NewError(providerName, providers.KindUpstreamFailure, "nameserver update not confirmed")
	}
	return nil
}

// splitDomain breaks "alpha.example" into the SLD/TLD pair the DNS
// commands expect. Everything after the first dot is the TLD so
// multi-label suffixes like co.uk survive intact.
func splitDomain(domain string) (sld, tld string, err error) {
	parts := strings.SplitN(domain, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", providers.NewError(providerName, providers.KindUpstreamInvalid,
			fmt.Sprintf("domain %q has no TLD", domain))
	}
	return parts[0], parts[1], nil
}
