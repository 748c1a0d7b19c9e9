package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MisreadableMind/word-to-site-ai/pkg/config"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/onboarding"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/firecrawl"
	"github.com/MisreadableMind/word-to-site-ai/pkg/templates"
)

type stubScraper struct {
	result *firecrawl.ScrapeResult
	err    error
}

func (s stubScraper) Scrape(ctx context.Context, url string, opts firecrawl.ScrapeOptions) (*firecrawl.ScrapeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s stubScraper) Crawl(ctx context.Context, url string, opts firecrawl.CrawlOptions) ([]firecrawl.ScrapeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []firecrawl.ScrapeResult{*s.result}, nil
}

func onboardingServer(scraper firecrawl.Scraper) *Server {
	catalog := templates.NewCatalog("", 0)
	catalog.Seed([]templates.Template{{
		Slug:       "flexify",
		Name:       "Flexify",
		Skin:       "default",
		Variations: []string{"default"},
		Industries: []string{"general", "consulting"},
	}})
	svc := onboarding.NewService(scraper, catalog, nil, nil, onboarding.Options{})
	return NewServer(Deps{Onboarding: svc, Features: allGates})
}

func scrapedFixture() *firecrawl.ScrapeResult {
	return &firecrawl.ScrapeResult{
		Markdown: "# Acme Consulting\nWe ship audits and strategy.",
		HTML:     `<html><head><title>Acme Consulting | Home</title></head><body><h1>Acme</h1></body></html>`,
		Metadata: firecrawl.Metadata{
			Title:       "Acme Consulting | Home",
			Description: "Audits and strategy for growing firms",
		},
		Links: []string{"https://acme.example/about"},
	}
}

func TestOnboardingCopyValidation(t *testing.T) {
	s := onboardingServer(stubScraper{result: scrapedFixture()})

	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{}`},
		{"not a url", `{"url":"not a url"}`},
		{"malformed body", `{"url":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/v1/onboarding/copy", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestOnboardingCopyJSONMode(t *testing.T) {
	s := onboardingServer(stubScraper{result: scrapedFixture()})
	rec := doRequest(t, s, http.MethodPost, "/api/v1/onboarding/copy",
		`{"url":"https://acme.example"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var run models.WorkflowRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.True(t, run.Success)
	assert.NotEmpty(t, run.Steps)

	result, err := json.Marshal(run.Result)
	require.NoError(t, err)
	assert.Contains(t, string(result), "Acme Consulting")
	assert.Contains(t, string(result), "flexify")
}

func TestOnboardingCopyScrapeFailure(t *testing.T) {
	s := onboardingServer(stubScraper{err: errors.New("connection refused")})
	rec := doRequest(t, s, http.MethodPost, "/api/v1/onboarding/copy",
		`{"url":"https://acme.example"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var run models.WorkflowRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.False(t, run.Success)
	assert.Contains(t, run.Error, "Scrape failed")
}

func TestOnboardingCopySSEMode(t *testing.T) {
	s := onboardingServer(stubScraper{result: scrapedFixture()})
	rec := doRequest(t, s, http.MethodPost, "/api/v1/onboarding/copy",
		`{"url":"https://acme.example"}`,
		map[string]string{"Accept": "text/event-stream"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `"step":"scraping_site"`)
	assert.Contains(t, body, `"step":"result"`)
}

func TestOnboardingVoice(t *testing.T) {
	s := onboardingServer(stubScraper{result: scrapedFixture()})

	t.Run("missing answers", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/api/v1/onboarding/voice", `{}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("json mode", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/api/v1/onboarding/voice",
			`{"answers":{"business_name":"Acme Consulting","industry":"consulting","services":"audits, strategy"}}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var run models.WorkflowRun
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
		assert.True(t, run.Success)
	})

	t.Run("gated off", func(t *testing.T) {
		gated := NewServer(Deps{Features: config.FeatureGates{}})
		rec := doRequest(t, gated, http.MethodPost, "/api/v1/onboarding/voice",
			`{"answers":{"business_name":"Acme"}}`, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
