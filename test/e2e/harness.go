// Package e2e boots the full HTTP application against a real PostgreSQL
// schema and exercises the provisioning, proxy, and editor surfaces over
// the wire. Provider calls (registrar, DNS, host, scraper, AI vendors)
// are replaced by scriptable in-memory fakes; everything else is real.
package e2e

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/MisreadableMind/word-to-site-ai/pkg/ai"
	"github.com/MisreadableMind/word-to-site-ai/pkg/api"
	"github.com/MisreadableMind/word-to-site-ai/pkg/config"
	"github.com/MisreadableMind/word-to-site-ai/pkg/database"
	"github.com/MisreadableMind/word-to-site-ai/pkg/deploy"
	"github.com/MisreadableMind/word-to-site-ai/pkg/dnscheck"
	"github.com/MisreadableMind/word-to-site-ai/pkg/editor"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/onboarding"
	"github.com/MisreadableMind/word-to-site-ai/pkg/proxy"
	"github.com/MisreadableMind/word-to-site-ai/pkg/store"
	"github.com/MisreadableMind/word-to-site-ai/pkg/templates"
	"github.com/MisreadableMind/word-to-site-ai/pkg/workflow"
	testdb "github.com/MisreadableMind/word-to-site-ai/test/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// adminSecret is the admin credential every TestApp serves unless a test
// overrides it.
const adminSecret = "e2e-admin-secret"

// TestApp is one complete application instance bound to 127.0.0.1:0.
type TestApp struct {
	// Real infrastructure.
	DBClient  *database.Client
	Store     *store.Store
	LogWorker *proxy.LogWorker
	Server    *api.Server

	// Scriptable fakes, shared with the running services.
	Completer *ScriptedCompleter
	Registrar *fakeRegistrar
	DNS       *fakeDNS
	Host      *fakeHost
	Site      *fakeSite
	Scraper   *fakeScraper

	BaseURL string // e.g. "http://127.0.0.1:54321"

	adminSecret string
	t           *testing.T
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	features    config.FeatureGates
	adminSecret string
	completer   *ScriptedCompleter
	scraped     *ScrapedSite
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithFeatures overrides the feature gates (all gates are on by default).
func WithFeatures(f config.FeatureGates) TestAppOption {
	return func(c *testAppConfig) { c.features = f }
}

// WithAdminSecret overrides the admin credential. An empty string
// disables the admin surface entirely.
func WithAdminSecret(secret string) TestAppOption {
	return func(c *testAppConfig) { c.adminSecret = secret }
}

// WithCompleter sets a pre-scripted AI completer.
func WithCompleter(c *ScriptedCompleter) TestAppOption {
	return func(tc *testAppConfig) { tc.completer = c }
}

// WithScrapedSite sets the page the fake scraper returns for every URL.
func WithScrapedSite(s *ScrapedSite) TestAppOption {
	return func(c *testAppConfig) { c.scraped = s }
}

// NewTestApp creates and starts a full application instance. Shutdown is
// registered via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	tc := &testAppConfig{
		features: config.FeatureGates{
			AIProxy:   true,
			PluginAPI: true,
			UserAuth:  true,
			VoiceFlow: true,
		},
		adminSecret: adminSecret,
	}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.completer == nil {
		tc.completer = NewScriptedCompleter()
	}
	if tc.scraped == nil {
		tc.scraped = DefaultScrapedSite()
	}

	// 1. Database — migrated, test-private schema.
	dbClient := testdb.NewTestClient(t)
	st := store.New(dbClient.DB())

	// 2. Request accounting.
	logWorker := proxy.NewLogWorker(st, 64)
	logWorker.Start()

	// 3. Tenant gateway — the scripted completer answers for all three
	// vendor prefixes.
	router := ai.NewRouter(tc.completer, tc.completer, tc.completer)
	gateway := proxy.NewGateway(st, router, logWorker)

	// 4. Provisioning pipeline over fakes. The applicator runs without a
	// completer so generated content is the deterministic fallback.
	registrar := newFakeRegistrar()
	dnsProvider := newFakeDNS()
	host := newFakeHost()
	site := newFakeSite()
	applicator := deploy.NewApplicator(nil, "")
	provisioner := workflow.NewDomainSite(registrar, dnsProvider, host, applicator).
		WithSiteClient(func(creds models.SiteCredentials) deploy.SiteAPI { return site }).
		WithNSProbe(fakeNSProbe{nameservers: []string{"ns1.oldhost.example", "ns2.oldhost.example"}})

	// 5. Onboarding — fake scraper, seeded catalog, heuristic matching.
	scraper := &fakeScraper{site: tc.scraped}
	catalog := templates.NewCatalog("", 0)
	catalog.Seed(seedTemplates())
	onboardingSvc := onboarding.NewService(scraper, catalog, nil, nil, onboarding.Options{})

	// 6. Editor — real store, scripted completer, every site id resolves
	// to the shared fake site.
	editorSvc := editor.NewService(st, fakeDirectory{site: site, url: "https://site-1.instawp.xyz"}, tc.completer, "")

	// 7. HTTP server on a random port.
	server := api.NewServer(api.Deps{
		DB:          dbClient,
		Provisioner: provisioner,
		Onboarding:  onboardingSvc,
		Applicator:  applicator,
		Gateway:     gateway,
		Store:       st,
		Editor:      editorSvc,
		DNS:         dnscheck.New("127.0.0.1:1"),
		LogWorker:   logWorker,
		Features:    tc.features,
		AdminSecret: tc.adminSecret,
		Version:     "e2e-test",
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = server.RunWithListener(ln)
	}()

	app := &TestApp{
		DBClient:  dbClient,
		Store:     st,
		LogWorker: logWorker,
		Server:    server,
		Completer: tc.completer,
		Registrar: registrar,
		DNS:       dnsProvider,
		Host:      host,
		Site:      site,
		Scraper:   scraper,
		BaseURL:   "http://" + ln.Addr().String(),

		adminSecret: tc.adminSecret,
		t:           t,
	}

	// Reverse-creation order; the schema drop registered by NewTestClient
	// runs after these.
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		logWorker.Stop()
	})

	return app
}

// seedTemplates is the catalog every TestApp starts with. Slugs and
// industries are chosen so the heuristic matcher has distinct targets.
func seedTemplates() []templates.Template {
	return []templates.Template{
		{
			Slug:       "flexify",
			Name:       "Flexify",
			Skin:       "default",
			Variations: []string{"default", "dark"},
			Industries: []string{"general", "consulting", "agency"},
		},
		{
			Slug:       "platea",
			Name:       "Platea",
			Skin:       "warm",
			Variations: []string{"default"},
			Industries: []string{"restaurant", "cafe", "food"},
		},
		{
			Slug:       "lexhub",
			Name:       "LexHub",
			Skin:       "default",
			Variations: []string{"default"},
			Industries: []string{"legal", "law", "attorney"},
		},
	}
}
