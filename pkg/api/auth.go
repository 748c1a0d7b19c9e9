package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const anonymousUser = "api-client"

// currentUser extracts the user identity from reverse-proxy headers, in
// priority order. Falls back to a shared identity when the deployment
// runs without an authenticating proxy in front.
func currentUser(c *gin.Context) string {
	if user := c.GetHeader("X-Forwarded-User"); user != "" {
		return user
	}
	if email := c.GetHeader("X-Forwarded-Email"); email != "" {
		return email
	}
	if user := c.GetHeader("X-Remote-User"); user != "" {
		return user
	}
	return anonymousUser
}

// requireUser rejects requests that reach a user-scoped route without an
// authenticated identity. Only active when user auth is enabled; with the
// gate off everyone shares the anonymous identity.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.features.UserAuth && currentUser(c) == anonymousUser {
			respondError(c, http.StatusUnauthorized, errTypeAuth, "authentication required")
			return
		}
		c.Next()
	}
}

// bearerToken pulls the token out of an "Authorization: Bearer ..." header.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, prefix))
}

// adminAuth guards the proxy admin surface with a shared secret header.
// Constant-time comparison; an unset secret disables the surface outright
// rather than leaving it open.
func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.adminSecret == "" {
			respondError(c, http.StatusServiceUnavailable, errTypeUnavailable, "proxy admin API is not configured")
			return
		}
		got := c.GetHeader("x-proxy-admin-secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminSecret)) != 1 {
			respondError(c, http.StatusUnauthorized, errTypeAuth, "invalid admin secret")
			return
		}
		c.Next()
	}
}
