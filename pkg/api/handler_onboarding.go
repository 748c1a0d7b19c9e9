package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/progress"
)

type onboardingCopyRequest struct {
	URL string `json:"url" binding:"required,url"`
}

type onboardingVoiceRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
}

// startOnboardingCopy runs the COPY flow: scrape a reference site, distill
// brief and brand, match a template, and assemble deployment contexts.
func (s *Server) startOnboardingCopy(c *gin.Context) {
	var req onboardingCopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, errTypeValidation, "a valid url is required")
		return
	}

	streamRun(c, func(ctx context.Context, sink progress.Sink) *models.WorkflowRun {
		return s.onboarding.RunCopy(ctx, req.URL, sink)
	})
}

// startOnboardingVoice runs the VOICE flow from interview answers.
func (s *Server) startOnboardingVoice(c *gin.Context) {
	var req onboardingVoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, errTypeValidation, "answers object is required")
		return
	}

	streamRun(c, func(ctx context.Context, sink progress.Sink) *models.WorkflowRun {
		return s.onboarding.RunVoice(ctx, req.Answers, sink)
	})
}
