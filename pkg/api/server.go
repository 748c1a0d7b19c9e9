// Package api exposes the provisioning workflows, the tenant AI proxy, and
// the editor over HTTP. Streaming endpoints speak SSE when the client asks
// for text/event-stream and plain JSON otherwise.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MisreadableMind/word-to-site-ai/pkg/config"
	"github.com/MisreadableMind/word-to-site-ai/pkg/database"
	"github.com/MisreadableMind/word-to-site-ai/pkg/deploy"
	"github.com/MisreadableMind/word-to-site-ai/pkg/dnscheck"
	"github.com/MisreadableMind/word-to-site-ai/pkg/editor"
	"github.com/MisreadableMind/word-to-site-ai/pkg/onboarding"
	"github.com/MisreadableMind/word-to-site-ai/pkg/proxy"
	"github.com/MisreadableMind/word-to-site-ai/pkg/store"
	"github.com/MisreadableMind/word-to-site-ai/pkg/workflow"
)

// Deps carries everything the server serves. Provider-backed services may
// be nil when their credentials are absent; the owning handlers then
// answer with configurationRequired instead of failing at startup.
type Deps struct {
	DB          *database.Client
	Provisioner *workflow.DomainSite
	Onboarding  *onboarding.Service
	Applicator  *deploy.Applicator
	Gateway     *proxy.Gateway
	Store       *store.Store
	Editor      *editor.Service
	DNS         *dnscheck.Checker
	LogWorker   *proxy.LogWorker
	Features    config.FeatureGates
	AdminSecret string
	Version     string
}

// Server is the HTTP layer. It owns no business logic; every handler
// validates, delegates, and shapes the response.
type Server struct {
	db          *database.Client
	provisioner *workflow.DomainSite
	onboarding  *onboarding.Service
	applicator  *deploy.Applicator
	gateway     *proxy.Gateway
	store       *store.Store
	editor      *editor.Service
	dns         *dnscheck.Checker
	logWorker   *proxy.LogWorker
	features    config.FeatureGates
	adminSecret string
	version     string

	httpServer *http.Server
}

// NewServer wires the HTTP layer over the given services.
func NewServer(deps Deps) *Server {
	return &Server{
		db:          deps.DB,
		provisioner: deps.Provisioner,
		onboarding:  deps.Onboarding,
		applicator:  deps.Applicator,
		gateway:     deps.Gateway,
		store:       deps.Store,
		editor:      deps.Editor,
		dns:         deps.DNS,
		logWorker:   deps.LogWorker,
		features:    deps.Features,
		adminSecret: deps.AdminSecret,
		version:     deps.Version,
	}
}

// Router builds the route table. Feature gates drop whole groups: a
// disabled surface is a 404, not a 403.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), securityHeaders())

	r.GET("/health", s.health)

	v1api := r.Group("/api/v1")
	v1api.POST("/workflows/domain-site", s.startDomainSite)
	v1api.POST("/onboarding/copy", s.startOnboardingCopy)
	if s.features.VoiceFlow {
		v1api.POST("/onboarding/voice", s.startOnboardingVoice)
	}
	if s.features.PluginAPI {
		v1api.POST("/sites/apply", s.applySite)
	}
	v1api.GET("/dns/propagation", s.dnsPropagation)

	ed := v1api.Group("/editor", s.requireUser())
	ed.POST("/sessions", s.createEditSession)
	ed.GET("/sessions/:id/messages", s.listEditMessages)
	ed.POST("/sessions/:id/messages", s.sendEditMessage)

	if s.features.AIProxy {
		v1 := r.Group("/v1")
		v1.POST("/chat/completions", s.proxyChat)
		v1.GET("/models", s.proxyModels)
		v1.GET("/usage", s.proxyUsage)

		admin := r.Group("/admin/proxy", s.adminAuth())
		admin.POST("/sites", s.createProxySite)
		admin.GET("/sites", s.listProxySites)
		admin.GET("/sites/:id/usage", s.proxySiteUsage)
		admin.GET("/sites/:id/requests", s.proxySiteRequests)
		admin.PATCH("/sites/:id/tier", s.updateProxySiteTier)
		admin.PATCH("/sites/:id/status", s.updateProxySiteStatus)
		admin.POST("/sites/:id/rotate-key", s.rotateProxySiteKey)
	}

	return r
}

// Run serves HTTP on addr until Shutdown or a listener error.
func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}

// RunWithListener serves HTTP on an already-bound listener. Tests bind
// 127.0.0.1:0 and read the address back from the listener.
func (s *Server) RunWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
