package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MisreadableMind/word-to-site-ai/pkg/config"
)

func adminHeaders() map[string]string {
	return map[string]string{"x-proxy-admin-secret": "secret"}
}

func adminServer() *Server {
	return NewServer(Deps{
		Features:    config.FeatureGates{AIProxy: true},
		AdminSecret: "secret",
	})
}

// Bind-level validation happens before any store access; happy paths run
// against a real database in the e2e suite.
func TestAdminValidation(t *testing.T) {
	s := adminServer()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   string
	}{
		{
			name:   "create without domain",
			method: http.MethodPost,
			path:   "/admin/proxy/sites",
			body:   `{"label":"shop"}`,
			want:   "domain is required",
		},
		{
			name:   "tier change without tier",
			method: http.MethodPatch,
			path:   "/admin/proxy/sites/abc/tier",
			body:   `{}`,
			want:   "tier is required",
		},
		{
			name:   "status change without status",
			method: http.MethodPatch,
			path:   "/admin/proxy/sites/abc/status",
			body:   `{}`,
			want:   "status is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, tt.method, tt.path, tt.body, adminHeaders())
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}
