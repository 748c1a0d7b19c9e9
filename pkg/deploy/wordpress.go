// Package deploy applies deployment and content contexts to a live
// WordPress site through its REST API, and exposes the site client the
// editor reuses for page edits.
package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
)

const (
	providerName   = "wordpress"
	requestTimeout = 60 * time.Second

	// customCSSPath is served by the companion plugin every managed
	// site carries, same namespace as the base-site catalog endpoint.
	customCSSPath = "/wp-json/wts/v1/custom-css"
)

// Page is a WordPress page in the flat shape the rest of the codebase
// works with.
type Page struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Slug    string `json:"slug"`
	Status  string `json:"status"`
	Link    string `json:"link,omitempty"`
}

// PageParams carry partial page fields for create and update calls.
type PageParams struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Slug    string `json:"slug,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Media is an uploaded media item.
type Media struct {
	ID  int    `json:"id"`
	URL string `json:"source_url"`
}

// Client talks to one site's REST API with basic auth.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

func NewClient(creds models.SiteCredentials) *Client {
	return &Client{
		baseURL:    strings.TrimRight(creds.BaseURL, "/"),
		username:   creds.Username,
		password:   creds.Password,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// wpError is the standard WordPress REST error body.
type wpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal site request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build site request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return providers.FromTransport(providerName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.FromTransport(providerName, err)
	}
	if resp.StatusCode >= 400 {
		message := strings.TrimSpace(string(raw))
		var failure wpError
		if json.Unmarshal(raw, &failure) == nil && failure.Message != "" {
			message = failure.Message
		}
		return providers.FromStatus(providerName, resp.StatusCode, message)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return providers.NewError(providerName, providers.KindUpstreamInvalid, "unparseable site response")
		}
	}
	return nil
}

// wpText is the {rendered, raw} shape WordPress uses for titles and
// content.
type wpText struct {
	Rendered string `json:"rendered"`
	Raw      string `json:"raw"`
}

func (t wpText) value() string {
	if t.Raw != "" {
		return t.Raw
	}
	return t.Rendered
}

type wpPage struct {
	ID      int    `json:"id"`
	Slug    string `json:"slug"`
	Status  string `json:"status"`
	Link    string `json:"link"`
	Title   wpText `json:"title"`
	Content wpText `json:"content"`
}

func (p wpPage) toPage() Page {
	return Page{
		ID:      p.ID,
		Title:   p.Title.value(),
		Content: p.Content.value(),
		Slug:    p.Slug,
		Status:  p.Status,
		Link:    p.Link,
	}
}

// ListPages returns the published pages of the site.
func (c *Client) ListPages(ctx context.Context) ([]Page, error) {
	var raw []wpPage
	if err := c.do(ctx, http.MethodGet, "/wp-json/wp/v2/pages?per_page=100", nil, &raw); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	pages := make([]Page, 0, len(raw))
	for _, p := range raw {
		pages = append(pages, p.toPage())
	}
	return pages, nil
}

// CreatePage creates a page and returns it with its assigned id.
func (c *Client) CreatePage(ctx context.Context, params PageParams) (*Page, error) {
	var raw wpPage
	if err := c.do(ctx, http.MethodPost, "/wp-json/wp/v2/pages", params, &raw); err != nil {
		return nil, fmt.Errorf("create page %q: %w", params.Title, err)
	}
	page := raw.toPage()
	return &page, nil
}

// UpdatePage applies partial updates to an existing page.
func (c *Client) UpdatePage(ctx context.Context, id int, params PageParams) (*Page, error) {
	var raw wpPage
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/wp-json/wp/v2/pages/%d", id), params, &raw); err != nil {
		return nil, fmt.Errorf("update page %d: %w", id, err)
	}
	page := raw.toPage()
	return &page, nil
}

// UpdateSettings patches site settings. Keys pass through as-is, so
// callers can set core options like title, description, show_on_front
// or site_logo in one call.
func (c *Client) UpdateSettings(ctx context.Context, updates map[string]any) error {
	if err := c.do(ctx, http.MethodPost, "/wp-json/wp/v2/settings", updates, nil); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// UploadMediaFromURL downloads the asset at sourceURL and re-uploads it
// into the site's media library.
func (c *Client) UploadMediaFromURL(ctx context.Context, sourceURL, filename string) (*Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build media download: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providers.FromTransport(providerName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, providers.FromStatus(providerName, resp.StatusCode,
			fmt.Sprintf("download %s failed", sourceURL))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.FromTransport(providerName, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if filename == "" {
		filename = path.Base(sourceURL)
	}

	upload, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/wp-json/wp/v2/media", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build media upload: %w", err)
	}
	upload.SetBasicAuth(c.username, c.password)
	upload.Header.Set("Content-Type", contentType)
	upload.Header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))

	uploadResp, err := c.httpClient.Do(upload)
	if err != nil {
		return nil, providers.FromTransport(providerName, err)
	}
	defer uploadResp.Body.Close()

	raw, err := io.ReadAll(uploadResp.Body)
	if err != nil {
		return nil, providers.FromTransport(providerName, err)
	}
	if uploadResp.StatusCode >= 400 {
		message := strings.TrimSpace(string(raw))
		var failure wpError
		if json.Unmarshal(raw, &failure) == nil && failure.Message != "" {
			message = failure.Message
		}
		return nil, providers.FromStatus(providerName, uploadResp.StatusCode, message)
	}

	var media Media
	if err := json.Unmarshal(raw, &media); err != nil {
		return nil, providers.NewError(providerName, providers.KindUpstreamInvalid, "unparseable media response")
	}
	return &media, nil
}

// InstallPlugin installs and activates a plugin by its directory slug.
// An already-installed plugin surfaces as a Conflict error so callers
// can fall back to plain activation.
func (c *Client) InstallPlugin(ctx context.Context, slug string) error {
	body := map[string]any{"slug": slug, "status": "active"}
	if err := c.do(ctx, http.MethodPost, "/wp-json/wp/v2/plugins", body, nil); err != nil {
		if isAlreadyInstalled(err) {
			return providers.NewError(providerName, providers.KindConflict,
				fmt.Sprintf("plugin %s already installed", slug))
		}
		return fmt.Errorf("install plugin %s: %w", slug, err)
	}
	return nil
}

// ActivatePlugin activates an installed plugin. The REST identifier is
// "dir/mainfile", so the installed list is searched for the slug.
func (c *Client) ActivatePlugin(ctx context.Context, slug string) error {
	var installed []struct {
		Plugin string `json:"plugin"`
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/wp-json/wp/v2/plugins", nil, &installed); err != nil {
		return fmt.Errorf("list plugins: %w", err)
	}

	for _, p := range installed {
		if p.Plugin == slug || strings.HasPrefix(p.Plugin, slug+"/") {
			if p.Status == "active" {
				return nil
			}
			body := map[string]any{"status": "active"}
			if err := c.do(ctx, http.MethodPost, "/wp-json/wp/v2/plugins/"+p.Plugin, body, nil); err != nil {
				return fmt.Errorf("activate plugin %s: %w", slug, err)
			}
			return nil
		}
	}
	return providers.NewError(providerName, providers.KindNotFound,
		fmt.Sprintf("plugin %s is not installed", slug))
}

// SetCustomCSS replaces the site's additional CSS through the companion
// plugin endpoint.
func (c *Client) SetCustomCSS(ctx context.Context, css string) error {
	if err := c.do(ctx, http.MethodPost, customCSSPath, map[string]any{"css": css}, nil); err != nil {
		return fmt.Errorf("set custom css: %w", err)
	}
	return nil
}

func isAlreadyInstalled(err error) bool {
	if providers.KindOf(err) == providers.KindConflict {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "already installed") || strings.Contains(message, "exists")
}
