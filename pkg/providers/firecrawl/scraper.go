// Package firecrawl scrapes web pages, either through the Firecrawl API
// or through a native HTTP fallback used when no vendor key is
// configured. The fallback extracts metadata and a stripped-text
// markdown rendition by regex only.
package firecrawl

import (
	"context"
	"time"
)

const (
	providerName   = "firecrawl"
	defaultBaseURL = "https://api.firecrawl.dev"

	requestTimeout = 30 * time.Second
)

// Metadata is the page-level metadata both implementations return.
type Metadata struct {
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	Language      string `json:"language,omitempty"`
	OGTitle       string `json:"ogTitle,omitempty"`
	OGDescription string `json:"ogDescription,omitempty"`
	OGImage       string `json:"ogImage,omitempty"`
	Favicon       string `json:"favicon,omitempty"`
	SourceURL     string `json:"sourceURL,omitempty"`
	StatusCode    int    `json:"statusCode,omitempty"`
}

// ScrapeResult is one scraped page.
type ScrapeResult struct {
	Markdown   string   `json:"markdown,omitempty"`
	HTML       string   `json:"html,omitempty"`
	Metadata   Metadata `json:"metadata"`
	Links      []string `json:"links,omitempty"`
	Screenshot string   `json:"screenshot,omitempty"`
}

// ScrapeOptions tune a single scrape.
type ScrapeOptions struct {
	// Formats defaults to markdown+html+links.
	Formats         []string
	OnlyMainContent bool
	Screenshot      bool
}

func (o ScrapeOptions) formats() []string {
	formats := o.Formats
	if len(formats) == 0 {
		formats = []string{"markdown", "html", "links"}
	}
	if o.Screenshot {
		formats = append(formats, "screenshot")
	}
	return formats
}

// CrawlOptions tune a multi-page crawl.
type CrawlOptions struct {
	Limit    int
	MaxDepth int
}

// Scraper is what the onboarding workflow consumes.
type Scraper interface {
	Scrape(ctx context.Context, url string, opts ScrapeOptions) (*ScrapeResult, error)
	Crawl(ctx context.Context, url string, opts CrawlOptions) ([]ScrapeResult, error)
}

// New picks the vendor client when a key is present and the native
// fallback otherwise. baseURL only applies to the vendor client.
func New(apiKey, baseURL string) Scraper {
	if apiKey == "" {
		return NewNative()
	}
	return NewClient(apiKey, baseURL)
}
