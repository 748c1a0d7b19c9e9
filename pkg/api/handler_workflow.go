package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/progress"
)

// startDomainSite kicks off the domain+site provisioning workflow.
func (s *Server) startDomainSite(c *gin.Context) {
	if s.provisioner == nil {
		respondConfigurationRequired(c, "domain provisioning requires Cloudflare and InstaWP credentials")
		return
	}

	var params models.DomainSiteParams
	if err := c.ShouldBindJSON(&params); err != nil {
		respondError(c, http.StatusBadRequest, errTypeValidation, "invalid request body: "+err.Error())
		return
	}
	if err := models.ValidateStruct(params); err != nil {
		respondServiceError(c, err)
		return
	}

	streamRun(c, func(ctx context.Context, sink progress.Sink) *models.WorkflowRun {
		return s.provisioner.Run(ctx, params, sink)
	})
}
