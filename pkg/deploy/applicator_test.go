package deploy

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MisreadableMind/word-to-site-ai/pkg/ai"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
)

// fakeSite records applicator calls and fails on demand.
type fakeSite struct {
	settings       []map[string]any
	createdPages   []PageParams
	installed      []string
	activated      []string
	css            []string
	uploads        []string
	nextPageID     int
	failCreateSlug string
	installErr     error
	uploadErr      error
}

func (f *fakeSite) UpdateSettings(ctx context.Context, updates map[string]any) error {
	f.settings = append(f.settings, updates)
	return nil
}

func (f *fakeSite) CreatePage(ctx context.Context, params PageParams) (*Page, error) {
	if params.Slug == f.failCreateSlug {
		return nil, providers.NewError("wordpress", providers.KindUpstreamFailure, "insert failed")
	}
	f.createdPages = append(f.createdPages, params)
	f.nextPageID++
	return &Page{ID: f.nextPageID, Title: params.Title, Slug: params.Slug, Status: params.Status}, nil
}

func (f *fakeSite) UploadMediaFromURL(ctx context.Context, sourceURL, filename string) (*Media, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads = append(f.uploads, sourceURL)
	return &Media{ID: 500 + len(f.uploads), URL: sourceURL}, nil
}

func (f *fakeSite) InstallPlugin(ctx context.Context, slug string) error {
	if f.installErr != nil {
		return f.installErr
	}
	f.installed = append(f.installed, slug)
	return nil
}

func (f *fakeSite) ActivatePlugin(ctx context.Context, slug string) error {
	f.activated = append(f.activated, slug)
	return nil
}

func (f *fakeSite) SetCustomCSS(ctx context.Context, css string) error {
	f.css = append(f.css, css)
	return nil
}

// scriptedCompleter returns canned content keyed by the user prompt.
type scriptedCompleter struct {
	reply string
	err   error
	calls int
}

func (s *scriptedCompleter) Complete(ctx context.Context, req ai.Request) (*ai.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &ai.Response{Content: s.reply, Model: req.Model}, nil
}

func bakeryContent() *models.ContentContext {
	return &models.ContentContext{
		Business: models.Business{
			Name:     "Luna Bakery",
			Tagline:  "Fresh sourdough daily",
			Industry: "bakery",
			Services: []string{"Bread", "Pastries"},
			ContactInfo: models.ContactInfo{
				Email: "hi@luna.example",
				Phone: "+1 555 0100",
			},
		},
		Tone: "friendly",
		Pages: []models.PageSpec{
			{Slug: "home", Title: "Home"},
			{Slug: "about", Title: "About Us"},
		},
	}
}

func TestApplyDeployment_SettingsCustomizerAndPlugins(t *testing.T) {
	site := &fakeSite{}
	deployment := &models.DeploymentContext{
		Template: models.TemplateSelection{Slug: "bistro"},
		Plugins:  []models.PluginSpec{{Slug: "seo-press", Activate: true}},
		Branding: models.Branding{
			PrimaryColor: "#AA3366",
			LogoURL:      "https://cdn.example/logo.png",
		},
	}

	applicator := NewApplicator(nil, "")
	outcomes := applicator.ApplyDeployment(context.Background(), site, deployment, bakeryContent())

	for _, outcome := range outcomes {
		assert.True(t, outcome.Success, outcome.Task)
	}

	require.NotEmpty(t, site.settings)
	assert.Equal(t, "Luna Bakery", site.settings[0]["title"])
	assert.Equal(t, "Fresh sourdough daily", site.settings[0]["description"])

	assert.Equal(t, []string{"https://cdn.example/logo.png"}, site.uploads)
	require.Len(t, site.css, 1)
	assert.Contains(t, site.css[0], "--primary-color: #AA3366")
	assert.Equal(t, []string{"seo-press"}, site.installed)
}

func TestApplyDeployment_AlreadyInstalledPluginGetsActivated(t *testing.T) {
	site := &fakeSite{
		installErr: providers.NewError("wordpress", providers.KindConflict, "plugin already installed"),
	}
	deployment := &models.DeploymentContext{
		Template: models.TemplateSelection{Slug: "bistro"},
		Plugins:  []models.PluginSpec{{Slug: "seo-press"}},
	}

	outcomes := NewApplicator(nil, "").ApplyDeployment(context.Background(), site, deployment, nil)

	assert.Equal(t, []string{"seo-press"}, site.activated)
	last := outcomes[len(outcomes)-1]
	assert.Equal(t, "plugin:seo-press", last.Task)
	assert.True(t, last.Success)
}

func TestApplyDeployment_CustomizerFailureDoesNotAbort(t *testing.T) {
	site := &fakeSite{
		uploadErr: providers.NewError("wordpress", providers.KindUpstreamFailure, "cdn unreachable"),
	}
	deployment := &models.DeploymentContext{
		Template: models.TemplateSelection{Slug: "bistro"},
		Plugins:  []models.PluginSpec{{Slug: "seo-press"}},
		Branding: models.Branding{LogoURL: "https://cdn.example/logo.png"},
	}

	outcomes := NewApplicator(nil, "").ApplyDeployment(context.Background(), site, deployment, nil)

	var logoOutcome *models.StepOutcome
	for i := range outcomes {
		if outcomes[i].Task == "customizer:logo" {
			logoOutcome = &outcomes[i]
		}
	}
	require.NotNil(t, logoOutcome)
	assert.False(t, logoOutcome.Success)
	assert.Contains(t, logoOutcome.Error, "cdn unreachable")
	assert.Equal(t, []string{"seo-press"}, site.installed, "plugins still run after a customizer failure")
}

func TestGeneratePages_NilCompleterUsesFallbacks(t *testing.T) {
	pages := NewApplicator(nil, "").GeneratePages(context.Background(), bakeryContent())

	require.Len(t, pages, 2)
	for _, page := range pages {
		assert.True(t, page.Fallback, page.Spec.Slug)
		assert.NotEmpty(t, page.HTML, page.Spec.Slug)
	}
	assert.Contains(t, pages[0].HTML, "Fresh sourdough daily", "home hero uses the tagline")
	assert.Contains(t, pages[1].HTML, "About Luna Bakery")
}

func TestGeneratePages_ModelContentWins(t *testing.T) {
	completer := &scriptedCompleter{
		reply: `{"sections":[{"type":"hero","heading":"Real Bread","body":"Baked at dawn.","ctaText":"Order now","ctaLink":"/order"},{"type":"rocket","heading":"Dropped"}]}`,
	}
	content := bakeryContent()
	content.Pages = content.Pages[:1]

	pages := NewApplicator(completer, "gpt-4o-mini").GeneratePages(context.Background(), content)

	require.Len(t, pages, 1)
	assert.False(t, pages[0].Fallback)
	assert.Contains(t, pages[0].HTML, "<h1>Real Bread</h1>")
	assert.Contains(t, pages[0].HTML, `href="/order"`)
	assert.NotContains(t, pages[0].HTML, "Dropped", "unknown section types are dropped")
	assert.Equal(t, 1, completer.calls)
}

func TestGeneratePages_ModelFailureFallsBackPerSlug(t *testing.T) {
	completer := &scriptedCompleter{
		err: providers.NewError("openai", providers.KindAuth, "missing key"),
	}

	pages := NewApplicator(completer, "gpt-4o-mini").GeneratePages(context.Background(), bakeryContent())

	require.Len(t, pages, 2)
	assert.True(t, pages[0].Fallback)
	assert.True(t, pages[1].Fallback)
}

func TestGeneratePages_EmptyPageListDefaults(t *testing.T) {
	content := bakeryContent()
	content.Pages = nil

	pages := NewApplicator(nil, "").GeneratePages(context.Background(), content)

	slugs := make([]string, 0, len(pages))
	for _, page := range pages {
		slugs = append(slugs, page.Spec.Slug)
	}
	assert.Equal(t, models.DefaultPageSlugs, slugs)
}

func TestPushPages_SetsFrontPagePointer(t *testing.T) {
	site := &fakeSite{}
	pages := NewApplicator(nil, "").GeneratePages(context.Background(), bakeryContent())

	pageIDs, frontPageID, outcomes := NewApplicator(nil, "").PushPages(context.Background(), site, pages)

	assert.Equal(t, map[string]int{"home": 1, "about": 2}, pageIDs)
	assert.Equal(t, 1, frontPageID)

	require.NotEmpty(t, site.settings)
	final := site.settings[len(site.settings)-1]
	assert.Equal(t, "page", final["show_on_front"])
	assert.Equal(t, 1, final["page_on_front"])

	for _, outcome := range outcomes {
		assert.True(t, outcome.Success, outcome.Task)
	}
}

func TestPushPages_FailedPageDoesNotStopBatch(t *testing.T) {
	site := &fakeSite{failCreateSlug: "home"}
	pages := NewApplicator(nil, "").GeneratePages(context.Background(), bakeryContent())

	pageIDs, frontPageID, outcomes := NewApplicator(nil, "").PushPages(context.Background(), site, pages)

	assert.NotContains(t, pageIDs, "home")
	assert.Contains(t, pageIDs, "about")
	assert.Zero(t, frontPageID, "no home page means no front-page pointer")

	var homeOutcome models.StepOutcome
	for _, outcome := range outcomes {
		if outcome.Task == "page:home" {
			homeOutcome = outcome
		}
	}
	assert.False(t, homeOutcome.Success)
	assert.Contains(t, homeOutcome.Error, "insert failed")
}

func TestApply_AggregatesSuccessFlag(t *testing.T) {
	site := &fakeSite{failCreateSlug: "about"}
	deployment := &models.DeploymentContext{Template: models.TemplateSelection{Slug: "bistro"}}

	result, err := NewApplicator(nil, "").Apply(context.Background(), site, deployment, bakeryContent(), nil)
	require.NoError(t, err)

	assert.False(t, result.Success, "a failed page flips the aggregate flag")
	assert.Equal(t, map[string]int{"home": 1}, result.PageIDs)
	assert.Equal(t, 1, result.FrontPageID)
}

func TestSerializeSections_KnownTaxonomy(t *testing.T) {
	html := serializeSections([]Section{
		{Type: SectionHero, Heading: "Luna", Body: "Bread & butter", CTAText: "Visit"},
		{Type: SectionFeatures, Heading: "Why us", Items: []SectionItem{
			{Title: "Fresh", Description: "Baked daily"},
		}},
		{Type: SectionContact, Heading: "Find us", Body: "Main St 1"},
	})

	assert.Contains(t, html, `<section class="hero"><h1>Luna</h1>`)
	assert.Contains(t, html, "Bread &amp; butter", "body text is escaped")
	assert.Contains(t, html, `href="/contact"`, "CTA link defaults")
	assert.Contains(t, html, "<strong>Fresh</strong>: Baked daily")
	assert.Contains(t, html, `<section class="contact"><h2>Find us</h2>`)
}

func TestFallbackSections_EverySlugProducesContent(t *testing.T) {
	business := bakeryContent().Business
	for _, slug := range append(models.DefaultPageSlugs, "pricing") {
		sections := fallbackSections(slug, business)
		require.NotEmpty(t, sections, slug)
		html := serializeSections(sections)
		assert.NotEmpty(t, html, fmt.Sprintf("slug %s must render", slug))
		assert.False(t, strings.Contains(html, "<nil>"), slug)
	}
}
