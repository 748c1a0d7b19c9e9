// Package templates serves the site template catalog: fetched from the
// base site, cached in memory for an hour, with a one-entry hardcoded
// fallback when the base site is unreachable.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long a fetched catalog stays warm.
	DefaultTTL = time.Hour

	catalogKey     = "catalog"
	catalogPath    = "/wp-json/wts/v1/templates"
	requestTimeout = 15 * time.Second
)

// Template describes one installable site template.
type Template struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Skin        string   `json:"skin,omitempty"`
	Variations  []string `json:"variations,omitempty"`
	Industries  []string `json:"industries,omitempty"`
	PreviewURL  string   `json:"preview_url,omitempty"`
}

// Fallback is the catalog of last resort, used whenever the base site
// cannot be reached and nothing is cached.
func Fallback() []Template {
	return []Template{{
		Slug:        "flexify",
		Name:        "Flexify",
		Description: "Versatile multi-purpose layout that suits most businesses",
		Skin:        "default",
		Variations:  []string{"default"},
		Industries:  []string{"general", "business", "services"},
	}}
}

// Catalog fetches and caches the template list.
type Catalog struct {
	baseURL    string
	httpClient *http.Client
	cache      *gocache.Cache
	group      singleflight.Group
}

// NewCatalog builds a catalog backed by the base site at baseURL. A
// non-positive ttl falls back to DefaultTTL.
func NewCatalog(baseURL string, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Catalog{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      gocache.New(ttl, 10*time.Minute),
	}
}

// Seed pre-loads the cache. Tests use it to avoid network fetches.
func (c *Catalog) Seed(templates []Template) {
	c.cache.SetDefault(catalogKey, templates)
}

// Templates returns the current catalog: cached copy if warm, otherwise
// one shared fetch from the base site, otherwise the hardcoded
// fallback. The fallback is not cached so a recovered base site is
// picked up on the next call.
func (c *Catalog) Templates(ctx context.Context) []Template {
	if cached, ok := c.cache.Get(catalogKey); ok {
		return cached.([]Template)
	}

	fetched, err, _ := c.group.Do(catalogKey, func() (any, error) {
		if cached, ok := c.cache.Get(catalogKey); ok {
			return cached.([]Template), nil
		}
		templates, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(catalogKey, templates)
		return templates, nil
	})
	if err != nil {
		slog.Warn("Template catalog fetch failed, using fallback", "error", err)
		return Fallback()
	}
	return fetched.([]Template)
}

// Get looks a template up by slug.
func (c *Catalog) Get(ctx context.Context, slug string) (*Template, bool) {
	for _, t := range c.Templates(ctx) {
		if t.Slug == slug {
			return &t, true
		}
	}
	return nil, false
}

func (c *Catalog) fetch(ctx context.Context) ([]Template, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("no base site configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+catalogPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var templates []Template
	if err := json.Unmarshal(body, &templates); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	return templates, nil
}

// MatchByIndustry returns the first template whose industries list
// contains the token as a case-insensitive substring, or nil.
func MatchByIndustry(templates []Template, industry string) *Template {
	token := strings.ToLower(strings.TrimSpace(industry))
	if token == "" {
		return nil
	}
	for _, t := range templates {
		if matchesIndustry(t, token) {
			match := t
			return &match
		}
	}
	return nil
}

func matchesIndustry(t Template, token string) bool {
	for _, industry := range t.Industries {
		lowered := strings.ToLower(industry)
		if strings.Contains(lowered, token) || strings.Contains(token, lowered) {
			return true
		}
	}
	return false
}

// PreferIndustry breaks a confidence tie: among the candidates, pick
// the first whose industries match the token; without a match the
// first candidate stands.
func PreferIndustry(candidates []Template, industry string) *Template {
	if len(candidates) == 0 {
		return nil
	}
	token := strings.ToLower(strings.TrimSpace(industry))
	if token != "" {
		for _, t := range candidates {
			if matchesIndustry(t, token) {
				match := t
				return &match
			}
		}
	}
	first := candidates[0]
	return &first
}
