package firecrawl

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

const (
	crawlBudget       = 120 * time.Second
	crawlPollInterval = 5 * time.Second
)

// Client calls the Firecrawl v1 API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Scraper = (*Client)(nil)

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal firecrawl request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build firecrawl request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
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
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &failure) == nil && failure.Error != "" {
			message = failure.Error
		}
		return providers.FromStatus(providerName, resp.StatusCode, message)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return providers.NewError(providerName, providers.KindUpstreamInvalid, "unparseable scraper response")
	}
	return nil
}

type vendorMetadata struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Language      string `json:"language"`
	OGTitle       string `json:"ogTitle"`
	OGDescription string `json:"ogDescription"`
	OGImage       string `json:"ogImage"`
	Favicon       string `json:"favicon"`
	SourceURL     string `json:"sourceURL"`
	StatusCode    int    `json:"statusCode"`
}

func (m vendorMetadata) toMetadata() Metadata {
	return Metadata(m)
}

type vendorPage struct {
	Markdown   string         `json:"markdown"`
	HTML       string         `json:"html"`
	Links      []string       `json:"links"`
	Screenshot string         `json:"screenshot"`
	Metadata   vendorMetadata `json:"metadata"`
}

func (p vendorPage) toResult() ScrapeResult {
	return ScrapeResult{
		Markdown:   p.Markdown,
		HTML:       p.HTML,
		Links:      p.Links,
		Screenshot: p.Screenshot,
		Metadata:   p.Metadata.toMetadata(),
	}
}

// Scrape fetches a single page through the vendor.
func (c *Client) Scrape(ctx context.Context, url string, opts ScrapeOptions) (*ScrapeResult, error) {
	body := map[string]any{
		"url":     url,
		"formats": opts.formats(),
	}
	if opts.OnlyMainContent {
		body["onlyMainContent"] = true
	}

	var resp struct {
		Success bool       `json:"success"`
		Error   string     `json:"error"`
		Data    vendorPage `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/scrape", body, &resp); err != nil {
		return nil, fmt.Errorf("scrape %s: %w", url, err)
	}
	if !resp.Success {
		message := resp.Error
		if message == "" {
			message = "scrape reported failure"
		}
		return nil, providers.NewError(providerName, providers.KindUpstreamInvalid, message)
	}

	result := resp.Data.toResult()
	return &result, nil
}

// Crawl starts a crawl job and polls it to completion.
func (c *Client) Crawl(ctx context.Context, url string, opts CrawlOptions) ([]ScrapeResult, error) {
	body := map[string]any{"url": url}
	if opts.Limit > 0 {
		body["limit"] = opts.Limit
	}
	if opts.MaxDepth > 0 {
		body["maxDepth"] = opts.MaxDepth
	}

	var started struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
		Error   string `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/crawl", body, &started); err != nil {
		return nil, fmt.Errorf("start crawl %s: %w", url, err)
	}
	if !started.Success || started.ID == "" {
		message := started.Error
		if message == "" {
			message = "crawl did not start"
		}
		return nil, providers.NewError(providerName, providers.KindUpstreamInvalid, message)
	}

	deadline := time.Now().Add(crawlBudget)
	for {
		var job struct {
			Status string       `json:"status"`
			Data   []vendorPage `json:"data"`
		}
		if err := c.do(ctx, http.MethodGet, "/v1/crawl/"+started.ID, nil, &job); err != nil {
			return nil, fmt.Errorf("poll crawl %s: %w", started.ID, err)
		}
		switch job.Status {
		case "completed":
			results := make([]ScrapeResult, 0, len(job.Data))
			for _, page := range job.Data {
				results = append(results, page.toResult())
			}
			return results, nil
		case "failed":
			return nil, providers.NewError(providerName, providers.KindUpstreamFailure, "crawl failed")
		}

		if time.Now().After(deadline) {
			return nil, providers.NewError(providerName, providers.KindTimeout,
				fmt.Sprintf("crawl %s not finished within %s", started.ID, crawlBudget))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(crawlPollInterval):
		}
	}
}
