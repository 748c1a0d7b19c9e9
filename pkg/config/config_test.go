package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"HOST", "PORT", "LOG_LEVEL", "REQUEST_LOG_RETENTION_DAYS",
		"ENABLE_AI_PROXY", "ENABLE_PLUGIN_API", "ENABLE_USER_AUTH", "ENABLE_VOICE_FLOW",
		"NAMECHEAP_API_KEY", "NAMECHEAP_USERNAME",
		"OPENAI_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 90, cfg.Retention.RequestLogDays)

	assert.True(t, cfg.Features.AIProxy)
	assert.True(t, cfg.Features.PluginAPI)
	assert.True(t, cfg.Features.UserAuth)
	assert.True(t, cfg.Features.VoiceFlow)

	assert.False(t, cfg.Providers.Namecheap.Configured())
	assert.False(t, cfg.AI.Configured())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("NAMECHEAP_API_KEY", "nck")
	t.Setenv("NAMECHEAP_USERNAME", "acme")
	t.Setenv("NAMECHEAP_SANDBOX", "true")
	t.Setenv("CLOUDFLARE_API_KEY", "cfk")
	t.Setenv("CLOUDFLARE_EMAIL", "ops@acme.example")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PROXY_ADMIN_SECRET", "hunter2")
	t.Setenv("ENABLE_VOICE_FLOW", "false")
	t.Setenv("REQUEST_LOG_RETENTION_DAYS", "30")
	t.Setenv("REQUEST_LOG_CLEANUP_INTERVAL", "15m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.True(t, cfg.Providers.Namecheap.Configured())
	assert.True(t, cfg.Providers.Namecheap.Sandbox)
	assert.True(t, cfg.Providers.Cloudflare.Configured())
	assert.False(t, cfg.Providers.InstaWP.Configured())
	assert.True(t, cfg.AI.Configured())
	assert.Equal(t, "hunter2", cfg.Proxy.AdminSecret)
	assert.False(t, cfg.Features.VoiceFlow)
	assert.True(t, cfg.Features.AIProxy, "untouched gates stay enabled")
	assert.Equal(t, 30, cfg.Retention.RequestLogDays)
	assert.Equal(t, 15*time.Minute, cfg.Retention.Interval)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	t.Setenv("ENABLE_AI_PROXY", "nope")
	t.Setenv("REQUEST_LOG_CLEANUP_INTERVAL", "soon")
	t.Setenv("LOG_LEVEL", "loud")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Features.AIProxy)
	assert.Equal(t, time.Duration(0), cfg.Retention.Interval)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel(" error "))
	assert.Equal(t, slog.LevelInfo, parseLogLevel(""))
}
