package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// dnsPropagation reports the live NS delegation for a domain. With one or
// more expected= values it also judges whether delegation has converged.
func (s *Server) dnsPropagation(c *gin.Context) {
	domain := c.Query("domain")
	if domain == "" {
		respondError(c, http.StatusBadRequest, errTypeValidation, "domain query parameter is required")
		return
	}

	result, err := s.dns.Check(c.Request.Context(), domain, c.QueryArray("expected"))
	if err != nil {
		respondError(c, http.StatusBadGateway, errTypeUpstream, "NS lookup failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}
