package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MisreadableMind/word-to-site-ai/pkg/deploy"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/progress"
)

type applyRequest struct {
	Site       models.SiteCredentials    `json:"site"`
	Deployment *models.DeploymentContext `json:"deployment,omitempty"`
	Content    *models.ContentContext    `json:"content,omitempty"`
}

// applySite pushes deployment and content contexts onto an existing
// WordPress site, credentialed per request.
func (s *Server) applySite(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, errTypeValidation, "invalid request body: "+err.Error())
		return
	}
	if err := models.ValidateStruct(req.Site); err != nil {
		respondServiceError(c, err)
		return
	}
	if req.Deployment == nil && req.Content == nil {
		respondError(c, http.StatusBadRequest, errTypeValidation, "a deployment or content context is required")
		return
	}
	if req.Deployment != nil {
		if err := models.ValidateDeploymentContext(req.Deployment); err != nil {
			respondServiceError(c, err)
			return
		}
	}
	if req.Content != nil {
		if err := models.ValidateContentContext(req.Content); err != nil {
			respondServiceError(c, err)
			return
		}
	}

	site := deploy.NewClient(req.Site)

	if wantsSSE(c) {
		sse, err := progress.NewSSEWriter(c.Writer)
		if err != nil {
			respondError(c, http.StatusInternalServerError, errTypeInternal, "connection does not support streaming")
			return
		}
		result, err := s.applicator.Apply(c.Request.Context(), site, req.Deployment, req.Content, sse)
		if err != nil {
			sse.WriteError(err.Error())
			return
		}
		sse.WriteResult(result)
		return
	}

	result, err := s.applicator.Apply(c.Request.Context(), site, req.Deployment, req.Content, progress.NopSink{})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
