package e2e

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MisreadableMind/word-to-site-ai/pkg/ai"
	"github.com/MisreadableMind/word-to-site-ai/pkg/deploy"
	"github.com/MisreadableMind/word-to-site-ai/pkg/editor"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/cloudflare"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/firecrawl"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/instawp"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/namecheap"
)

// ────────────────────────────────────────────────────────────
// Scripted AI completer
// ────────────────────────────────────────────────────────────

// ScriptEntry is one pre-programmed completion.
type ScriptEntry struct {
	Content string
	Usage   ai.Usage
	Err     error
}

// ScriptedCompleter replays scripted completions in order. Calls past the
// end of the script echo the last user message, so tests that don't care
// about AI output need no script at all.
type ScriptedCompleter struct {
	mu     sync.Mutex
	script []ScriptEntry
	next   int
	calls  int
}

func NewScriptedCompleter() *ScriptedCompleter {
	return &ScriptedCompleter{}
}

// Add appends entries to the script.
func (c *ScriptedCompleter) Add(entries ...ScriptEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, entries...)
}

// CallCount reports how many completions were requested.
func (c *ScriptedCompleter) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *ScriptedCompleter) Complete(ctx context.Context, req ai.Request) (*ai.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	if c.next < len(c.script) {
		entry := c.script[c.next]
		c.next++
		if entry.Err != nil {
			return nil, entry.Err
		}
		usage := entry.Usage
		if usage.TotalTokens == 0 {
			usage = ai.Usage{PromptTokens: 9, CompletionTokens: 12, TotalTokens: 21}
		}
		return &ai.Response{Content: entry.Content, Model: req.Model, Usage: usage}, nil
	}

	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	return &ai.Response{
		Content: "ack: " + last,
		Model:   req.Model,
		Usage:   ai.Usage{PromptTokens: 9, CompletionTokens: 12, TotalTokens: 21},
	}, nil
}

// ────────────────────────────────────────────────────────────
// Provider fakes
// ────────────────────────────────────────────────────────────

// fakeRegistrar answers registrar calls from memory. Tests flip Available
// or set CheckErr/RegisterErr to exercise failure paths.
type fakeRegistrar struct {
	mu          sync.Mutex
	Available   bool
	CheckErr    error
	RegisterErr error

	registered  []string
	nameservers map[string][]string
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{Available: true, nameservers: map[string][]string{}}
}

func (f *fakeRegistrar) Check(ctx context.Context, domain string) (*namecheap.CheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CheckErr != nil {
		return nil, f.CheckErr
	}
	return &namecheap.CheckResult{Domain: domain, Available: f.Available}, nil
}

func (f *fakeRegistrar) Register(ctx context.Context, domain string, years int, contact models.RegistrantContact) (*namecheap.RegisterResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RegisterErr != nil {
		return nil, f.RegisterErr
	}
	f.registered = append(f.registered, domain)
	return &namecheap.RegisterResult{
		Domain:        domain,
		Registered:    true,
		ChargedAmount: 10.98,
		DomainID:      "883322",
		OrderID:       "1971293",
	}, nil
}

func (f *fakeRegistrar) SetCustomNameservers(ctx context.Context, domain string, nameservers []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nameservers[domain] = nameservers
	return nil
}

// Registered reports the domains registered so far.
func (f *fakeRegistrar) Registered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.registered...)
}

// Nameservers reports the delegation set for a domain, if any.
func (f *fakeRegistrar) Nameservers(domain string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nameservers[domain]
}

// fakeDNS answers zone and record calls from memory.
type fakeDNS struct {
	mu      sync.Mutex
	ZoneErr error

	records map[string][]string // zoneID → IPs
	secured []string
}

func newFakeDNS() *fakeDNS {
	return &fakeDNS{records: map[string][]string{}}
}

func (f *fakeDNS) GetOrCreateZone(ctx context.Context, domain string) (*cloudflare.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ZoneErr != nil {
		return nil, f.ZoneErr
	}
	return &cloudflare.Zone{
		ID:          "zone-" + domain,
		Name:        domain,
		Nameservers: []string{"ada.ns.cloudflare.com", "bob.ns.cloudflare.com"},
	}, nil
}

func (f *fakeDNS) SetARecords(ctx context.Context, zoneID, name string, ips []string, includeWww bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[zoneID] = append([]string(nil), ips...)
	return nil
}

func (f *fakeDNS) ConfigureSecurity(ctx context.Context, zoneID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secured = append(f.secured, zoneID)
	return nil
}

// Records reports the A record IPs set for a zone.
func (f *fakeDNS) Records(zoneID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[zoneID]
}

// fakeHost answers hosting calls from memory.
type fakeHost struct {
	mu        sync.Mutex
	CreateErr error
	SSLActive bool

	created []string
	mapped  map[string]string // siteID → domain
}

func newFakeHost() *fakeHost {
	return &fakeHost{SSLActive: true, mapped: map[string]string{}}
}

func (f *fakeHost) CreateSite(ctx context.Context, opts instawp.CreateSiteOptions) (*models.ProvisionedSite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	id := fmt.Sprintf("site-%d", len(f.created)+1)
	f.created = append(f.created, id)
	return &models.ProvisionedSite{
		ID:         id,
		WpURL:      "https://" + id + ".instawp.xyz",
		WpUsername: "admin",
		WpPassword: "wp-secret",
	}, nil
}

func (f *fakeHost) WaitUntilReady(ctx context.Context, siteID string, budget, interval time.Duration) (*models.ProvisionedSite, error) {
	return &models.ProvisionedSite{
		ID:         siteID,
		WpURL:      "https://" + siteID + ".instawp.xyz",
		WpUsername: "admin",
		WpPassword: "wp-secret",
	}, nil
}

func (f *fakeHost) MapDomain(ctx context.Context, siteID, domain string, opts instawp.MapDomainOptions) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mapped[siteID] = domain
	return []string{"203.0.113.10"}, nil
}

func (f *fakeHost) CheckSSLStatus(ctx context.Context, siteID string) (*models.SSLStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SSLActive {
		return &models.SSLStatus{Enabled: true, Status: "active"}, nil
	}
	return &models.SSLStatus{Enabled: false, Status: "pending"}, nil
}

// MappedDomain reports the domain mapped onto a site, if any.
func (f *fakeHost) MappedDomain(siteID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mapped[siteID]
}

// fakeNSProbe reports a fixed delegation for every domain.
type fakeNSProbe struct {
	nameservers []string
}

func (p fakeNSProbe) Lookup(ctx context.Context, domain string) ([]string, error) {
	return p.nameservers, nil
}

// ────────────────────────────────────────────────────────────
// Fake scraper
// ────────────────────────────────────────────────────────────

// ScrapedSite is the page the fake scraper serves for every URL.
type ScrapedSite struct {
	Markdown    string
	HTML        string
	Title       string
	Description string
	Links       []string
}

// DefaultScrapedSite is a small consulting site with enough signal for
// the heuristic brand and template matchers.
func DefaultScrapedSite() *ScrapedSite {
	return &ScrapedSite{
		Markdown: "# Acme Consulting\n\nWe ship audits, strategy, and operational reviews for growing firms.\n\nCall us at (555) 010-2030 or email hello@acme.example.",
		HTML: `<html><head><title>Acme Consulting | Home</title>` +
			`<meta name="description" content="Audits and strategy for growing firms">` +
			`</head><body><h1>Acme Consulting</h1><p>Audits and strategy.</p></body></html>`,
		Title:       "Acme Consulting | Home",
		Description: "Audits and strategy for growing firms",
		Links:       []string{"https://acme.example/about", "https://acme.example/services"},
	}
}

// fakeScraper serves the configured page for every URL.
type fakeScraper struct {
	mu   sync.Mutex
	site *ScrapedSite
	Err  error
}

func (f *fakeScraper) result() *firecrawl.ScrapeResult {
	return &firecrawl.ScrapeResult{
		Markdown: f.site.Markdown,
		HTML:     f.site.HTML,
		Metadata: firecrawl.Metadata{
			Title:       f.site.Title,
			Description: f.site.Description,
		},
		Links: f.site.Links,
	}
}

func (f *fakeScraper) Scrape(ctx context.Context, url string, opts firecrawl.ScrapeOptions) (*firecrawl.ScrapeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.result(), nil
}

func (f *fakeScraper) Crawl(ctx context.Context, url string, opts firecrawl.CrawlOptions) ([]firecrawl.ScrapeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return []firecrawl.ScrapeResult{*f.result()}, nil
}

// ────────────────────────────────────────────────────────────
// Fake provisioned site
// ────────────────────────────────────────────────────────────

// fakeSite is an in-memory stand-in for one provisioned site's REST API.
// It satisfies both deploy.SiteAPI and editor.SiteClient, so the same
// instance observes the applicator's pushes and the editor's actions.
type fakeSite struct {
	mu       sync.Mutex
	nextID   int
	pages    map[int]*deploy.Page
	settings map[string]any
	css      string
	plugins  []string
	media    []string
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		nextID:   1,
		pages:    map[int]*deploy.Page{},
		settings: map[string]any{},
	}
}

func (f *fakeSite) UpdateSettings(ctx context.Context, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range updates {
		f.settings[k] = v
	}
	return nil
}

func (f *fakeSite) CreatePage(ctx context.Context, params deploy.PageParams) (*deploy.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	page := &deploy.Page{
		ID:      id,
		Title:   params.Title,
		Content: params.Content,
		Slug:    params.Slug,
		Status:  params.Status,
		Link:    "https://site-1.instawp.xyz/" + params.Slug,
	}
	f.pages[id] = page
	copied := *page
	return &copied, nil
}

func (f *fakeSite) UpdatePage(ctx context.Context, id int, params deploy.PageParams) (*deploy.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[id]
	if !ok {
		return nil, fmt.Errorf("page %d not found", id)
	}
	if params.Title != "" {
		page.Title = params.Title
	}
	if params.Content != "" {
		page.Content = params.Content
	}
	if params.Slug != "" {
		page.Slug = params.Slug
	}
	if params.Status != "" {
		page.Status = params.Status
	}
	copied := *page
	return &copied, nil
}

func (f *fakeSite) ListPages(ctx context.Context) ([]deploy.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages := make([]deploy.Page, 0, len(f.pages))
	for id := 1; id < f.nextID; id++ {
		if p, ok := f.pages[id]; ok {
			pages = append(pages, *p)
		}
	}
	return pages, nil
}

func (f *fakeSite) UploadMediaFromURL(ctx context.Context, sourceURL, filename string) (*deploy.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media = append(f.media, sourceURL)
	return &deploy.Media{ID: len(f.media), URL: sourceURL}, nil
}

func (f *fakeSite) InstallPlugin(ctx context.Context, slug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plugins = append(f.plugins, slug)
	return nil
}

func (f *fakeSite) ActivatePlugin(ctx context.Context, slug string) error {
	return nil
}

func (f *fakeSite) SetCustomCSS(ctx context.Context, css string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.css = css
	return nil
}

// Page returns a copy of the stored page, or nil.
func (f *fakeSite) Page(id int) *deploy.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[id]
	if !ok {
		return nil
	}
	copied := *page
	return &copied
}

// PageCount reports how many pages the site holds.
func (f *fakeSite) PageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pages)
}

// Setting returns one stored settings value.
func (f *fakeSite) Setting(key string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings[key]
}

// CustomCSS returns the last CSS pushed to the site.
func (f *fakeSite) CustomCSS() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.css
}

// fakeDirectory resolves every site id to the shared fake site.
type fakeDirectory struct {
	site *fakeSite
	url  string
}

func (d fakeDirectory) Resolve(ctx context.Context, siteID string) (editor.SiteClient, string, error) {
	return d.site, d.url, nil
}
