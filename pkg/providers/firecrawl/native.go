package firecrawl

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
)

// nativeUserAgent keeps simple bot filters from serving empty shells.
const nativeUserAgent = "Mozilla/5.0 (compatible; wordtosite/1.0; +https://wordtosite.ai)"

// maxBodyBytes caps how much of a page the fallback reads.
const maxBodyBytes = 2 << 20

var (
	titleRe    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaTagRe  = regexp.MustCompile(`(?is)<meta\b[^>]*>`)
	linkTagRe  = regexp.MustCompile(`(?is)<link\b[^>]*>`)
	attrRe     = regexp.MustCompile(`([a-zA-Z:-]+)\s*=\s*["']([^"']*)["']`)
	hrefRe     = regexp.MustCompile(`(?i)<a\b[^>]*href=["']([^"'#]+)["']`)
	scriptRe   = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	styleRe    = regexp.MustCompile(`(?is)<style\b.*?</style>`)
	noscriptRe = regexp.MustCompile(`(?is)<noscript\b.*?</noscript>`)
	anyTagRe   = regexp.MustCompile(`(?s)<[^>]*>`)
	spacesRe   = regexp.MustCompile(`[ \t]+`)
	blanksRe   = regexp.MustCompile(`\n{3,}`)
)

// Native is the keyless fallback: one GET per page, metadata and text
// pulled out with regular expressions. No JS rendering, no screenshots.
type Native struct {
	httpClient *http.Client
}

var _ Scraper = (*Native)(nil)

func NewNative() *Native {
	return &Native{httpClient: &http.Client{Timeout: requestTimeout}}
}

// Scrape fetches the page and synthesizes a ScrapeResult from its raw
// HTML.
func (n *Native) Scrape(ctx context.Context, pageURL string, opts ScrapeOptions) (*ScrapeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build scrape request: %w", err)
	}
	req.Header.Set("User-Agent", nativeUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, providers.FromTransport(providerName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, providers.FromTransport(providerName, err)
	}
	if resp.StatusCode >= 400 {
		return nil, providers.FromStatus(providerName, resp.StatusCode,
			fmt.Sprintf("fetch %s failed", pageURL))
	}

	page := string(raw)
	metadata := extractMetadata(page, pageURL)
	metadata.StatusCode = resp.StatusCode

	return &ScrapeResult{
		Markdown: htmlToMarkdown(page, metadata.Title),
		HTML:     page,
		Metadata: metadata,
		Links:    extractLinks(page, pageURL),
	}, nil
}

// Crawl without a vendor is a single-page scrape of the root.
func (n *Native) Crawl(ctx context.Context, pageURL string, opts CrawlOptions) ([]ScrapeResult, error) {
	result, err := n.Scrape(ctx, pageURL, ScrapeOptions{})
	if err != nil {
		return nil, err
	}
	return []ScrapeResult{*result}, nil
}

func extractMetadata(page, pageURL string) Metadata {
	metadata := Metadata{SourceURL: pageURL}

	if m := titleRe.FindStringSubmatch(page); m != nil {
		metadata.Title = cleanText(m[1])
	}

	for _, tag := range metaTagRe.FindAllString(page, -1) {
		attrs := parseAttrs(tag)
		content := attrs["content"]
		if content == "" {
			continue
		}
		switch {
		case attrs["name"] == "description":
			metadata.Description = cleanText(content)
		case attrs["property"] == "og:title":
			metadata.OGTitle = cleanText(content)
		case attrs["property"] == "og:description":
			metadata.OGDescription = cleanText(content)
		case attrs["property"] == "og:image":
			metadata.OGImage = resolveURL(pageURL, content)
		}
	}

	for _, tag := range linkTagRe.FindAllString(page, -1) {
		attrs := parseAttrs(tag)
		rel := strings.ToLower(attrs["rel"])
		if attrs["href"] == "" {
			continue
		}
		if rel == "icon" || rel == "shortcut icon" || rel == "apple-touch-icon" {
			metadata.Favicon = resolveURL(pageURL, attrs["href"])
			break
		}
	}

	if lang := extractLangAttr(page); lang != "" {
		metadata.Language = lang
	}
	return metadata
}

var htmlLangRe = regexp.MustCompile(`(?is)<html\b[^>]*\blang\s*=\s*["']([^"']+)["']`)

func extractLangAttr(page string) string {
	if m := htmlLangRe.FindStringSubmatch(page); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func parseAttrs(tag string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(tag, -1) {
		attrs[strings.ToLower(m[1])] = m[2]
	}
	return attrs
}

// htmlToMarkdown produces the stripped-text rendition: the title as a
// heading followed by the page text with scripts, styles and all
// markup removed.
func htmlToMarkdown(page, title string) string {
	text := scriptRe.ReplaceAllString(page, " ")
	text = styleRe.ReplaceAllString(text, " ")
	text = noscriptRe.ReplaceAllString(text, " ")
	text = anyTagRe.ReplaceAllString(text, "\n")
	text = html.UnescapeString(text)
	text = spacesRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	body := blanksRe.ReplaceAllString(strings.Join(kept, "\n"), "\n\n")

	if title != "" {
		return "# " + title + "\n\n" + body
	}
	return body
}

func extractLinks(page, pageURL string) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, m := range hrefRe.FindAllStringSubmatch(page, -1) {
		resolved := resolveURL(pageURL, m[1])
		if resolved == "" {
			continue
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	}
	return links
}

// resolveURL absolutizes href values against the page URL and drops
// anything that is not http(s).
func resolveURL(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}
