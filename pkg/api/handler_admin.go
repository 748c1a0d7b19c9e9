package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/proxy"
)

type createProxySiteRequest struct {
	Domain string `json:"domain" binding:"required"`
	Label  string `json:"label"`
	Tier   string `json:"tier"`
}

type updateTierRequest struct {
	Tier string `json:"tier" binding:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type siteUsageResponse struct {
	SiteID string                `json:"site_id"`
	Domain string                `json:"domain"`
	Tier   string                `json:"tier"`
	Usage  *models.UsageSnapshot `json:"usage"`
}

// createProxySite registers a tenant and mints its API key. The key is
// returned here and on rotation; there is no other way to read it back.
func (s *Server) createProxySite(c *gin.Context) {
	var req createProxySiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, errTypeValidation, "domain is required")
		return
	}

	key, err := proxy.GenerateKey()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	site, err := s.store.CreateProxySite(c.Request.Context(), req.Domain, key, req.Label, req.Tier)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, site)
}

func (s *Server) listProxySites(c *gin.Context) {
	sites, err := s.store.ListProxySites(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sites": sites, "count": len(sites)})
}

// proxySiteUsage reports a site's current-month token accounting.
func (s *Server) proxySiteUsage(c *gin.Context) {
	site, err := s.store.GetProxySite(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	used, err := s.store.MonthTokenUsage(c.Request.Context(), site.ID, time.Now())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, siteUsageResponse{
		SiteID: site.ID,
		Domain: site.Domain,
		Tier:   site.SubscriptionTier,
		Usage:  proxy.Snapshot(used, site.MonthlyTokenLimit),
	})
}

// proxySiteRequests returns the site's recent traffic, newest first.
func (s *Server) proxySiteRequests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	site, err := s.store.GetProxySite(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	entries, err := s.store.ListRequestLog(c.Request.Context(), site.ID, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": entries, "count": len(entries)})
}

func (s *Server) updateProxySiteTier(c *gin.Context) {
	var req updateTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, errTypeValidation, "tier is required")
		return
	}

	site, err := s.store.UpdateProxySiteTier(c.Request.Context(), c.Param("id"), req.Tier)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}

func (s *Server) updateProxySiteStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, errTypeValidation, "status is required")
		return
	}

	site, err := s.store.UpdateProxySiteStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}

// rotateProxySiteKey mints a fresh key and invalidates the old one.
func (s *Server) rotateProxySiteKey(c *gin.Context) {
	key, err := proxy.GenerateKey()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	site, err := s.store.RotateProxySiteKey(c.Request.Context(), c.Param("id"), key)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}
