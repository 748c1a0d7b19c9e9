package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
)

const fixtureHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Luna Bakery &amp; Cafe</title>
  <meta content="Fresh sourdough daily" name="description">
  <meta property="og:title" content="Luna Bakery">
  <meta property="og:image" content="/img/hero.jpg">
  <link rel="icon" href="/favicon.ico">
  <style>body { color: #333; }</style>
</head>
<body>
  <script>console.log("tracking");</script>
  <h1>Welcome to Luna</h1>
  <p>We bake bread &amp; pastries.</p>
  <a href="/about">About</a>
  <a href="/about">About again</a>
  <a href="https://instagram.com/luna">Instagram</a>
  <a href="mailto:hi@luna.example">Mail</a>
</body>
</html>`

func TestNew_PicksImplementationByKey(t *testing.T) {
	assert.IsType(t, &Native{}, New("", ""))
	assert.IsType(t, &Client{}, New("fc-key", ""))
}

func TestNativeScrape_ExtractsMetadataByRegex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "wordtosite")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(fixtureHTML))
	}))
	t.Cleanup(server.Close)

	result, err := NewNative().Scrape(context.Background(), server.URL, ScrapeOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Luna Bakery & Cafe", result.Metadata.Title)
	assert.Equal(t, "Fresh sourdough daily", result.Metadata.Description)
	assert.Equal(t, "Luna Bakery", result.Metadata.OGTitle)
	assert.Equal(t, server.URL+"/img/hero.jpg", result.Metadata.OGImage)
	assert.Equal(t, server.URL+"/favicon.ico", result.Metadata.Favicon)
	assert.Equal(t, "en", result.Metadata.Language)
	assert.Equal(t, server.URL, result.Metadata.SourceURL)
	assert.Equal(t, http.StatusOK, result.Metadata.StatusCode)
}

func TestNativeScrape_MarkdownIsStrippedText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fixtureHTML))
	}))
	t.Cleanup(server.Close)

	result, err := NewNative().Scrape(context.Background(), server.URL, ScrapeOptions{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Markdown, "# Luna Bakery & Cafe\n\n"))
	assert.Contains(t, result.Markdown, "Welcome to Luna")
	assert.Contains(t, result.Markdown, "We bake bread & pastries.")
	assert.NotContains(t, result.Markdown, "console.log", "script bodies must be stripped")
	assert.NotContains(t, result.Markdown, "color: #333", "style bodies must be stripped")
	assert.NotContains(t, result.Markdown, "<", "no tags may survive")
}

func TestNativeScrape_LinksResolvedAndDeduplicated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fixtureHTML))
	}))
	t.Cleanup(server.Close)

	result, err := NewNative().Scrape(context.Background(), server.URL, ScrapeOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{server.URL + "/about", "https://instagram.com/luna"}, result.Links,
		"relative hrefs resolve, duplicates collapse, non-http schemes drop")
}

func TestNativeScrape_HTTPErrorMapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	_, err := NewNative().Scrape(context.Background(), server.URL, ScrapeOptions{})
	require.Error(t, err)
	assert.Equal(t, providers.KindNotFound, providers.KindOf(err))
}

func TestNativeCrawl_IsSinglePageScrape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fixtureHTML))
	}))
	t.Cleanup(server.Close)

	results, err := NewNative().Crawl(context.Background(), server.URL, CrawlOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Luna Bakery & Cafe", results[0].Metadata.Title)
}

func TestClientScrape_SendsFormatsAndMapsResponse(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/scrape", r.URL.Path)
		require.Equal(t, "Bearer fc-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"markdown": "# Luna",
				"html":     "<html></html>",
				"links":    []string{"https://luna.example/about"},
				"metadata": map[string]any{
					"title":      "Luna Bakery",
					"ogImage":    "https://luna.example/hero.jpg",
					"sourceURL":  "https://luna.example",
					"statusCode": 200,
				},
			},
		})
	}))
	t.Cleanup(server.Close)
	client := NewClient("fc-key", server.URL)

	result, err := client.Scrape(context.Background(), "https://luna.example", ScrapeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "# Luna", result.Markdown)
	assert.Equal(t, "Luna Bakery", result.Metadata.Title)
	assert.Equal(t, 200, result.Metadata.StatusCode)

	assert.Equal(t, "https://luna.example", captured["url"])
	assert.ElementsMatch(t, []any{"markdown", "html", "links"}, captured["formats"])
}

func TestClientScrape_ScreenshotFormatAppended(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{}})
	}))
	t.Cleanup(server.Close)

	_, err := NewClient("fc-key", server.URL).Scrape(context.Background(), "https://luna.example",
		ScrapeOptions{Screenshot: true})
	require.NoError(t, err)
	assert.Contains(t, captured["formats"], "screenshot")
}

func TestClientScrape_QuotaStatusMapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "insufficient credits"})
	}))
	t.Cleanup(server.Close)

	_, err := NewClient("fc-key", server.URL).Scrape(context.Background(), "https://luna.example", ScrapeOptions{})
	require.Error(t, err)
	assert.Equal(t, providers.KindQuotaExceeded, providers.KindOf(err))
	assert.Contains(t, err.Error(), "insufficient credits")
	assert.False(t, providers.IsRetryable(err))
}

func TestClientScrape_SuccessFalseIsUpstreamInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "blocked by robots"})
	}))
	t.Cleanup(server.Close)

	_, err := NewClient("fc-key", server.URL).Scrape(context.Background(), "https://luna.example", ScrapeOptions{})
	require.Error(t, err)
	assert.Equal(t, providers.KindUpstreamInvalid, providers.KindOf(err))
}
