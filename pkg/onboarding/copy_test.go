package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MisreadableMind/word-to-site-ai/pkg/ai"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/progress"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/firecrawl"
	"github.com/MisreadableMind/word-to-site-ai/pkg/templates"
)

type stubScraper struct {
	result *firecrawl.ScrapeResult
	err    error
	calls  int
}

func (s *stubScraper) Scrape(ctx context.Context, url string, opts firecrawl.ScrapeOptions) (*firecrawl.ScrapeResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubScraper) Crawl(ctx context.Context, url string, opts firecrawl.CrawlOptions) ([]firecrawl.ScrapeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []firecrawl.ScrapeResult{*s.result}, nil
}

// queuedCompleter replays canned replies in order.
type queuedCompleter struct {
	replies []string
	err     error
	calls   int
}

func (q *queuedCompleter) Complete(ctx context.Context, req ai.Request) (*ai.Response, error) {
	q.calls++
	if q.err != nil {
		return nil, q.err
	}
	reply := q.replies[0]
	if len(q.replies) > 1 {
		q.replies = q.replies[1:]
	}
	return &ai.Response{Content: reply, Model: "stub"}, nil
}

func seededCatalog(t *testing.T) *templates.Catalog {
	t.Helper()
	catalog := templates.NewCatalog("", templates.DefaultTTL)
	catalog.Seed([]templates.Template{
		{Slug: "bistro", Name: "Bistro", Skin: "warm", Variations: []string{"classic"},
			Industries: []string{"restaurant", "cafe", "food"}},
		{Slug: "counsel", Name: "Counsel", Skin: "slate",
			Industries: []string{"legal", "law", "consulting"}},
		{Slug: "flexify", Name: "Flexify", Skin: "default",
			Industries: []string{"general", "business"}},
	})
	return catalog
}

func onboardingSteps(run *models.WorkflowRun) []string {
	names := make([]string, 0, len(run.Steps))
	for _, s := range run.Steps {
		names = append(names, s.Step)
	}
	return names
}

func TestRunCopy_FallbackEverything(t *testing.T) {
	// No AI, no reachable base site: the run must still succeed on the
	// hardcoded catalog and scrape metadata alone.
	scraper := &stubScraper{result: &firecrawl.ScrapeResult{
		Markdown: "# Luna Bakery\n\nFresh bread daily.",
		Metadata: firecrawl.Metadata{
			Title:       "Luna Bakery | Fresh Bread Daily",
			Description: "A neighborhood bakery in Riverside.",
		},
	}}
	catalog := templates.NewCatalog("", templates.DefaultTTL)
	svc := NewService(scraper, catalog, nil, nil, Options{
		Defaults: Defaults{FaviconURL: "https://cdn.wordtosite.example/favicon.ico"},
	})

	run := svc.RunCopy(context.Background(), "https://unreachable.example", nil)

	require.True(t, run.Success, "run error: %s", run.Error)
	result, ok := run.Result.(*models.OnboardingResult)
	require.True(t, ok)

	assert.Equal(t, "copy", result.Variant)
	assert.Equal(t, "flexify", result.TemplateMatch.Slug)
	assert.Equal(t, "Luna Bakery", result.Content.Business.Name,
		"business name comes from the metadata title prefix")
	assert.Equal(t, "https://cdn.wordtosite.example/favicon.ico",
		result.Deployment.Branding.FaviconURL)
	assert.Equal(t, "A neighborhood bakery in Riverside.", result.Content.SEO.MetaDescription)

	names := onboardingSteps(run)
	assert.True(t, progress.IsOrderedSubsequence(names, progress.OnboardingStepOrder),
		"records out of order: %v", names)
	assert.Contains(t, names, progress.StepSiteAnalyzed)
	assert.Contains(t, names, progress.StepContextsValidated)
}

func TestRunCopy_ModelDrivenMatch(t *testing.T) {
	scraper := &stubScraper{result: &firecrawl.ScrapeResult{
		Markdown: "# Luna Bakery",
		HTML:     brandFixtureHTML,
		Metadata: firecrawl.Metadata{
			Title:       "Luna Bakery | Fresh Bread Daily",
			Description: "A neighborhood bakery.",
			Favicon:     "https://luna.example/favicon.ico",
		},
	}}
	completer := &queuedCompleter{replies: []string{
		`{"industry":"bakery","summary":"A neighborhood bakery with daily fresh bread.","tone":"friendly"}`,
		`{"candidates":[{"slug":"bistro","confidence":0.9,"reason":"food business"}]}`,
	}}
	svc := NewService(scraper, seededCatalog(t), completer, nil, Options{})

	run := svc.RunCopy(context.Background(), "https://luna.example", nil)

	require.True(t, run.Success, "run error: %s", run.Error)
	result := run.Result.(*models.OnboardingResult)

	assert.Equal(t, "bistro", result.TemplateMatch.Slug)
	assert.InDelta(t, 0.9, result.TemplateMatch.Confidence, 0.0001)
	assert.Equal(t, "friendly", result.Content.Tone)
	assert.Equal(t, "bakery", result.Content.Business.Industry)
	assert.Equal(t, 2, completer.calls, "one analysis call, one match call")

	// Brand extraction feeds branding: palette colors and the scraped
	// favicon survive into the deployment context.
	assert.Equal(t, "#E4572E", result.Deployment.Branding.PrimaryColor)
	assert.Equal(t, "#17BEBB", result.Deployment.Branding.SecondaryColor)
	assert.Equal(t, "https://luna.example/favicon.ico", result.Deployment.Branding.FaviconURL)

	require.NotNil(t, result.Content.SourceAnalysis)
	assert.Equal(t, "https://luna.example", result.Content.SourceAnalysis.URL)
	assert.Equal(t, []string{"#E4572E", "#17BEBB"}, result.Content.SourceAnalysis.Palette)
}

func TestRunCopy_ScrapeFailureIsFatal(t *testing.T) {
	scraper := &stubScraper{err: errors.New("connection refused")}
	svc := NewService(scraper, seededCatalog(t), nil, nil, Options{})

	run := svc.RunCopy(context.Background(), "https://down.example", nil)

	assert.False(t, run.Success)
	assert.Contains(t, run.Error, "Scrape failed")
	assert.Empty(t, run.Steps, "fatal first step leaves no records")
}

func TestRunCopy_AnalysisFailureIsSoft(t *testing.T) {
	scraper := &stubScraper{result: &firecrawl.ScrapeResult{
		Markdown: "# Luna Bakery",
		Metadata: firecrawl.Metadata{Title: "Luna Bakery"},
	}}
	completer := &queuedCompleter{err: errors.New("model unavailable")}
	svc := NewService(scraper, seededCatalog(t), completer, nil, Options{})

	run := svc.RunCopy(context.Background(), "https://luna.example", nil)

	require.True(t, run.Success, "run error: %s", run.Error)

	var analyzed *models.StepRecord
	for i := range run.Steps {
		if run.Steps[i].Step == progress.StepSiteAnalyzed {
			analyzed = &run.Steps[i]
		}
	}
	require.NotNil(t, analyzed)
	assert.False(t, analyzed.Success)
	assert.Contains(t, analyzed.Error, "model unavailable")
}

func TestRunCopy_MissingTitleAbortsAtValidation(t *testing.T) {
	scraper := &stubScraper{result: &firecrawl.ScrapeResult{
		Markdown: "no metadata at all",
	}}
	svc := NewService(scraper, seededCatalog(t), nil, nil, Options{})

	run := svc.RunCopy(context.Background(), "https://blank.example", nil)

	assert.False(t, run.Success)
	assert.Contains(t, run.Error, "Name")

	names := onboardingSteps(run)
	assert.NotContains(t, names, progress.StepContextsValidated)
	assert.Contains(t, names, progress.StepContextsBuilt)
}

func TestRunCopy_CancellationRecordsTerminalStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scraper := &stubScraper{result: &firecrawl.ScrapeResult{
		Metadata: firecrawl.Metadata{Title: "Luna Bakery"},
	}}
	svc := NewService(scraper, seededCatalog(t), nil, nil, Options{})

	cancel()
	run := svc.RunCopy(ctx, "https://luna.example", nil)

	assert.False(t, run.Success)
	names := onboardingSteps(run)
	require.NotEmpty(t, names)
	assert.Equal(t, progress.StepCancelled, names[len(names)-1])
}
