// Package config resolves process configuration from the environment.
// Database settings live in pkg/database; everything else is here. Missing
// provider credentials are not a startup error: the affected endpoints
// report a configuration problem when they are actually called.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig is the HTTP listener address.
type ServerConfig struct {
	Host string
	Port int
}

// Addr is the host:port string for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// NamecheapConfig holds registrar credentials.
type NamecheapConfig struct {
	APIKey   string
	Username string
	ClientIP string
	Sandbox  bool
}

// Configured reports whether the registrar client can be built.
func (c NamecheapConfig) Configured() bool {
	return c.APIKey != "" && c.Username != ""
}

// CloudflareConfig holds DNS provider credentials.
type CloudflareConfig struct {
	APIKey    string
	Email     string
	AccountID string
}

// Configured reports whether the DNS client can be built.
func (c CloudflareConfig) Configured() bool {
	return c.APIKey != "" && c.Email != ""
}

// InstaWPConfig holds hosting provider credentials.
type InstaWPConfig struct {
	APIKey string
}

func (c InstaWPConfig) Configured() bool { return c.APIKey != "" }

// FirecrawlConfig holds the scraper key. Absent is fine: the native
// scraper takes over.
type FirecrawlConfig struct {
	APIKey string
}

func (c FirecrawlConfig) Configured() bool { return c.APIKey != "" }

// ProvidersConfig groups the external provider credentials.
type ProvidersConfig struct {
	Namecheap  NamecheapConfig
	Cloudflare CloudflareConfig
	InstaWP    InstaWPConfig
	Firecrawl  FirecrawlConfig
}

// AIConfig holds the vendor keys and the model choices shared by
// onboarding, deployment and the editor. Empty model names defer to each
// client's built-in default.
type AIConfig struct {
	OpenAIKey    string
	GeminiKey    string
	AnthropicKey string
	TextModel    string
	VisionModel  string
}

// Configured reports whether at least one vendor is usable.
func (c AIConfig) Configured() bool {
	return c.OpenAIKey != "" || c.GeminiKey != "" || c.AnthropicKey != ""
}

// ProxyConfig tunes the multi-tenant AI proxy.
type ProxyConfig struct {
	AdminSecret string
	LogBuffer   int
}

// TemplatesConfig points the catalog at the base site.
type TemplatesConfig struct {
	BaseSiteURL string
	CacheTTL    time.Duration
}

// RetentionConfig controls request-log retention.
type RetentionConfig struct {
	RequestLogDays int
	Interval       time.Duration
}

// FeatureGates switch whole route groups on and off. Everything defaults
// to enabled.
type FeatureGates struct {
	AIProxy   bool
	PluginAPI bool
	UserAuth  bool
	VoiceFlow bool
}

// Defaults used by onboarding when the caller supplies nothing.
type DefaultsConfig struct {
	FaviconURL string
}

// Config is the umbrella configuration resolved once at startup.
type Config struct {
	Server    ServerConfig
	Providers ProvidersConfig
	AI        AIConfig
	Proxy     ProxyConfig
	Templates TemplatesConfig
	Retention RetentionConfig
	Features  FeatureGates
	Defaults  DefaultsConfig
	LogLevel  slog.Level
}

// Load reads every setting from the environment, applying documented
// defaults. It never fails: malformed numbers fall back with a warning.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("HOST", ""),
			Port: getEnvInt("PORT", 8080),
		},
		Providers: ProvidersConfig{
			Namecheap: NamecheapConfig{
				APIKey:   os.Getenv("NAMECHEAP_API_KEY"),
				Username: os.Getenv("NAMECHEAP_USERNAME"),
				ClientIP: os.Getenv("NAMECHEAP_CLIENT_IP"),
				Sandbox:  getEnvBool("NAMECHEAP_SANDBOX", false),
			},
			Cloudflare: CloudflareConfig{
				APIKey:    os.Getenv("CLOUDFLARE_API_KEY"),
				Email:     os.Getenv("CLOUDFLARE_EMAIL"),
				AccountID: os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			},
			InstaWP: InstaWPConfig{
				APIKey: os.Getenv("INSTA_WP_API_KEY"),
			},
			Firecrawl: FirecrawlConfig{
				APIKey: os.Getenv("FIRECRAWL_API_KEY"),
			},
		},
		AI: AIConfig{
			OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
			GeminiKey:    os.Getenv("GEMINI_API_KEY"),
			AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
			TextModel:    os.Getenv("AI_TEXT_MODEL"),
			VisionModel:  os.Getenv("AI_VISION_MODEL"),
		},
		Proxy: ProxyConfig{
			AdminSecret: os.Getenv("PROXY_ADMIN_SECRET"),
			LogBuffer:   getEnvInt("PROXY_LOG_BUFFER", 0),
		},
		Templates: TemplatesConfig{
			BaseSiteURL: os.Getenv("BASE_SITE_URL"),
			CacheTTL:    getEnvDuration("TEMPLATE_CACHE_TTL", 0),
		},
		Retention: RetentionConfig{
			RequestLogDays: getEnvInt("REQUEST_LOG_RETENTION_DAYS", 90),
			Interval:       getEnvDuration("REQUEST_LOG_CLEANUP_INTERVAL", 0),
		},
		Features: FeatureGates{
			AIProxy:   getEnvBool("ENABLE_AI_PROXY", true),
			PluginAPI: getEnvBool("ENABLE_PLUGIN_API", true),
			UserAuth:  getEnvBool("ENABLE_USER_AUTH", true),
			VoiceFlow: getEnvBool("ENABLE_VOICE_FLOW", true),
		},
		Defaults: DefaultsConfig{
			FaviconURL: os.Getenv("DEFAULT_FAVICON_URL"),
		},
		LogLevel: parseLogLevel(getEnv("LOG_LEVEL", "info")),
	}
}

// LogSummary reports which integrations are live without echoing any
// secret material.
func (c *Config) LogSummary() {
	slog.Info("Configuration resolved",
		"addr", c.Server.Addr(),
		"namecheap", c.Providers.Namecheap.Configured(),
		"cloudflare", c.Providers.Cloudflare.Configured(),
		"instawp", c.Providers.InstaWP.Configured(),
		"firecrawl", c.Providers.Firecrawl.Configured(),
		"ai", c.AI.Configured(),
		"proxy_admin", c.Proxy.AdminSecret != "",
		"ai_proxy", c.Features.AIProxy,
		"plugin_api", c.Features.PluginAPI,
		"user_auth", c.Features.UserAuth,
		"voice_flow", c.Features.VoiceFlow,
		"retention_days", c.Retention.RequestLogDays)
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Unknown LOG_LEVEL, using info", "value", raw)
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Ignoring malformed integer env var", "key", key, "value", raw)
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("Ignoring malformed boolean env var", "key", key, "value", raw)
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("Ignoring malformed duration env var", "key", key, "value", raw)
		return fallback
	}
	return value
}
