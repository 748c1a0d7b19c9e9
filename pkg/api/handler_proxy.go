package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MisreadableMind/word-to-site-ai/pkg/proxy"
)

// proxyChat is the tenant-facing OpenAI-compatible completion endpoint.
// Vendor routing, quota, and tier policy all live in the gateway; the
// handler only moves the envelope.
func (s *Server) proxyChat(c *gin.Context) {
	var req proxy.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, proxy.ErrTypeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	completion, err := s.gateway.Chat(c.Request.Context(), bearerToken(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, completion)
}

// proxyModels lists the models the calling site's tier allows.
func (s *Server) proxyModels(c *gin.Context) {
	list, err := s.gateway.Models(c.Request.Context(), bearerToken(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// proxyUsage reports the calling site's current-month token accounting.
func (s *Server) proxyUsage(c *gin.Context) {
	snapshot, err := s.gateway.Usage(c.Request.Context(), bearerToken(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
