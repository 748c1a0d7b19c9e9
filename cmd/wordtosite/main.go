// wordtosite server — turns a domain name or a spoken brief into a live
// WordPress site, and fronts the multi-tenant AI proxy.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MisreadableMind/word-to-site-ai/pkg/ai"
	"github.com/MisreadableMind/word-to-site-ai/pkg/api"
	"github.com/MisreadableMind/word-to-site-ai/pkg/cleanup"
	"github.com/MisreadableMind/word-to-site-ai/pkg/config"
	"github.com/MisreadableMind/word-to-site-ai/pkg/database"
	"github.com/MisreadableMind/word-to-site-ai/pkg/deploy"
	"github.com/MisreadableMind/word-to-site-ai/pkg/dnscheck"
	"github.com/MisreadableMind/word-to-site-ai/pkg/editor"
	"github.com/MisreadableMind/word-to-site-ai/pkg/onboarding"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/cloudflare"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/firecrawl"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/instawp"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/namecheap"
	"github.com/MisreadableMind/word-to-site-ai/pkg/proxy"
	"github.com/MisreadableMind/word-to-site-ai/pkg/store"
	"github.com/MisreadableMind/word-to-site-ai/pkg/templates"
	"github.com/MisreadableMind/word-to-site-ai/pkg/version"
	"github.com/MisreadableMind/word-to-site-ai/pkg/workflow"
)

func main() {
	// Load .env when present; the real environment always wins.
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded, continuing with existing environment", "error", err)
	}

	// 1. Resolve configuration and logging.
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))
	slog.Info("Starting wordtosite", "version", version.Full())
	cfg.LogSummary()

	ctx := context.Background()

	// 2. Database (fatal): connectivity check plus embedded migrations.
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	st := store.New(dbClient.DB())

	// 3. Provider clients. Unconfigured providers stay nil and their
	// surfaces answer with configurationRequired.
	var registrar workflow.Registrar
	if nc := cfg.Providers.Namecheap; nc.Configured() {
		registrar = namecheap.New(namecheap.Config{
			APIKey:   nc.APIKey,
			Username: nc.Username,
			ClientIP: nc.ClientIP,
			Sandbox:  nc.Sandbox,
		})
	}
	var dnsClient *cloudflare.Client
	if cf := cfg.Providers.Cloudflare; cf.Configured() {
		dnsClient = cloudflare.New(cf.Email, cf.APIKey, cf.AccountID, "")
	}
	var hostClient *instawp.Client
	if iw := cfg.Providers.InstaWP; iw.Configured() {
		hostClient = instawp.New(iw.APIKey, "")
	}
	scraper := firecrawl.New(cfg.Providers.Firecrawl.APIKey, "")

	// 4. AI vendor clients and the prefix router. The default completer
	// serves onboarding, content generation and the editor.
	var openaiClient, geminiClient, anthropicClient ai.Completer
	var vision ai.VisionCompleter
	if cfg.AI.OpenAIKey != "" {
		oc := ai.NewOpenAI(cfg.AI.OpenAIKey, "", cfg.AI.TextModel, ai.DefaultTimeout)
		openaiClient = oc
		vision = oc
	}
	if cfg.AI.GeminiKey != "" {
		geminiClient = ai.NewGemini(cfg.AI.GeminiKey, "", cfg.AI.TextModel, ai.DefaultTimeout)
	}
	if cfg.AI.AnthropicKey != "" {
		anthropicClient = ai.NewAnthropic(cfg.AI.AnthropicKey, "", cfg.AI.TextModel, ai.DefaultTimeout)
	}
	router := ai.NewRouter(openaiClient, geminiClient, anthropicClient)
	completer := firstCompleter(openaiClient, geminiClient, anthropicClient)

	// 5. Domain services.
	applicator := deploy.NewApplicator(completer, cfg.AI.TextModel)

	var provisioner *workflow.DomainSite
	if dnsClient != nil && hostClient != nil {
		provisioner = workflow.NewDomainSite(registrar, dnsClient, hostClient, applicator).
			WithNSProbe(dnscheck.New())
	}

	catalog := templates.NewCatalog(cfg.Templates.BaseSiteURL, cfg.Templates.CacheTTL)
	onboardingSvc := onboarding.NewService(scraper, catalog, completer, vision, onboarding.Options{
		TextModel:   cfg.AI.TextModel,
		VisionModel: cfg.AI.VisionModel,
		Defaults:    onboarding.Defaults{FaviconURL: cfg.Defaults.FaviconURL},
	})

	var editorSvc *editor.Service
	if completer != nil && hostClient != nil {
		editorSvc = editor.NewService(st, editor.NewHostDirectory(hostClient), completer, cfg.AI.TextModel)
	}

	// 6. Proxy accounting worker and gateway.
	logWorker := proxy.NewLogWorker(st, cfg.Proxy.LogBuffer)
	logWorker.Start()
	gateway := proxy.NewGateway(st, router, logWorker)

	// 7. Request log retention.
	retention := cleanup.NewService(st, cleanup.Options{
		RetentionDays: cfg.Retention.RequestLogDays,
		Interval:      cfg.Retention.Interval,
	})
	retention.Start(ctx)

	// 8. HTTP server.
	server := api.NewServer(api.Deps{
		DB:          dbClient,
		Provisioner: provisioner,
		Onboarding:  onboardingSvc,
		Applicator:  applicator,
		Gateway:     gateway,
		Store:       st,
		Editor:      editorSvc,
		DNS:         dnscheck.New(),
		LogWorker:   logWorker,
		Features:    cfg.Features,
		AdminSecret: cfg.Proxy.AdminSecret,
		Version:     version.Full(),
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Run(cfg.Server.Addr()); err != nil {
			errCh <- err
		}
	}()

	slog.Info("wordtosite started successfully", "addr", cfg.Server.Addr())

	// 9. Wait for shutdown signal or server error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: stop taking requests, then stop the
	// background services, then flush accounting.
	httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	retention.Stop()
	logWorker.Stop()

	slog.Info("Shutdown complete")
}

// firstCompleter picks the default text vendor in fixed preference order.
func firstCompleter(candidates ...ai.Completer) ai.Completer {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}
