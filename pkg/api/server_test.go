package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/MisreadableMind/word-to-site-ai/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// allGates has every feature switched on, the default deployment shape.
var allGates = config.FeatureGates{
	AIProxy:   true,
	PluginAPI: true,
	UserAuth:  true,
	VoiceFlow: true,
}

func doRequest(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestSecurityHeaders(t *testing.T) {
	s := NewServer(Deps{Features: allGates})
	rec := doRequest(t, s, http.MethodGet, "/api/v1/dns/propagation", "", nil)

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, rec.Header().Get("Permissions-Policy"))
}

func TestFeatureGatesDropRoutes(t *testing.T) {
	tests := []struct {
		name     string
		features config.FeatureGates
		method   string
		path     string
		want     int
	}{
		{
			name:     "voice flow disabled",
			features: config.FeatureGates{},
			method:   http.MethodPost,
			path:     "/api/v1/onboarding/voice",
			want:     http.StatusNotFound,
		},
		{
			name:     "voice flow enabled reaches handler",
			features: config.FeatureGates{VoiceFlow: true},
			method:   http.MethodPost,
			path:     "/api/v1/onboarding/voice",
			want:     http.StatusBadRequest,
		},
		{
			name:     "plugin API disabled",
			features: config.FeatureGates{},
			method:   http.MethodPost,
			path:     "/api/v1/sites/apply",
			want:     http.StatusNotFound,
		},
		{
			name:     "AI proxy disabled drops tenant surface",
			features: config.FeatureGates{},
			method:   http.MethodGet,
			path:     "/v1/models",
			want:     http.StatusNotFound,
		},
		{
			name:     "AI proxy disabled drops admin surface",
			features: config.FeatureGates{},
			method:   http.MethodGet,
			path:     "/admin/proxy/sites",
			want:     http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(Deps{Features: tt.features, AdminSecret: "secret"})
			rec := doRequest(t, s, tt.method, tt.path, "{}", nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	s := NewServer(Deps{Features: allGates})
	rec := doRequest(t, s, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
