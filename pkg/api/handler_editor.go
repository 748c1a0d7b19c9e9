package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createSessionRequest struct {
	SiteID string `json:"siteId" binding:"required"`
}

type sendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// createEditSession opens a conversational editing session against one of
// the caller's sites.
func (s *Server) createEditSession(c *gin.Context) {
	if s.editor == nil {
		respondConfigurationRequired(c, "the editor requires an AI provider key and InstaWP credentials")
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, errTypeValidation, "siteId is required")
		return
	}

	session, err := s.editor.CreateSession(c.Request.Context(), currentUser(c), req.SiteID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// listEditMessages returns the session transcript in order.
func (s *Server) listEditMessages(c *gin.Context) {
	if s.editor == nil {
		respondConfigurationRequired(c, "the editor requires an AI provider key and InstaWP credentials")
		return
	}

	messages, err := s.editor.Messages(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

// sendEditMessage runs one conversational turn: the assistant replies and
// any emitted actions are executed against the live site.
func (s *Server) sendEditMessage(c *gin.Context) {
	if s.editor == nil {
		respondConfigurationRequired(c, "the editor requires an AI provider key and InstaWP credentials")
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, errTypeValidation, "message is required")
		return
	}

	reply, err := s.editor.SendMessage(c.Request.Context(), c.Param("id"), currentUser(c), req.Message)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}
