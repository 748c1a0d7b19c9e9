package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
	"github.com/MisreadableMind/word-to-site-ai/pkg/proxy"
	"github.com/MisreadableMind/word-to-site-ai/pkg/store"
)

// Error envelope types, shared by every JSON error this API returns.
const (
	errTypeValidation   = "validation_error"
	errTypeAuth         = "authentication_error"
	errTypeForbidden    = "forbidden"
	errTypeNotFound     = "not_found"
	errTypeConflict     = "conflict"
	errTypeUpstream     = "upstream_error"
	errTypeRateLimited  = "rate_limited"
	errTypeQuota        = "quota_exceeded"
	errTypeInternal     = "api_error"
	errTypeUnavailable  = "service_unavailable"
	errTypeNotSupported = "not_supported"
)

// errorDetail is the body of the error envelope. ConfigurationRequired
// flags failures the operator fixes with credentials, not the caller with
// a different request. Usage rides along on quota rejections.
type errorDetail struct {
	Message               string                `json:"message"`
	Type                  string                `json:"type"`
	ConfigurationRequired bool                  `json:"configurationRequired,omitempty"`
	Usage                 *models.UsageSnapshot `json:"usage,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func respondError(c *gin.Context, status int, errType, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{
		Message: message,
		Type:    errType,
	}})
}

// respondConfigurationRequired rejects a request whose feature is wired
// but whose provider credentials are missing from the environment.
func respondConfigurationRequired(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: errorDetail{
		Message:               message,
		Type:                  errTypeValidation,
		ConfigurationRequired: true,
	}})
}

// respondServiceError maps service-layer errors to HTTP error responses.
func respondServiceError(c *gin.Context, err error) {
	if models.IsValidationError(err) {
		respondError(c, http.StatusBadRequest, errTypeValidation, err.Error())
		return
	}
	if gerr, ok := proxy.AsGatewayError(err); ok {
		c.AbortWithStatusJSON(gerr.Status, errorBody{Error: errorDetail{
			Message: gerr.Message,
			Type:    gerr.Type,
			Usage:   gerr.Usage,
		}})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, errTypeNotFound, "resource not found")
		return
	}
	if errors.Is(err, store.ErrDuplicateDomain) {
		respondError(c, http.StatusConflict, errTypeConflict, "domain already registered")
		return
	}
	if errors.Is(err, store.ErrUnknownTier) {
		respondError(c, http.StatusBadRequest, errTypeValidation, "unknown subscription tier")
		return
	}
	if errors.Is(err, store.ErrInvalidInput) {
		respondError(c, http.StatusBadRequest, errTypeValidation, err.Error())
		return
	}
	if perr, ok := providers.AsError(err); ok {
		respondProviderError(c, perr)
		return
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	respondError(c, http.StatusInternalServerError, errTypeInternal, "internal server error")
}

// respondProviderError translates an upstream provider failure into the
// caller-facing status. Vendor text stays in the message: these endpoints
// are operator-facing, unlike the tenant proxy which sanitizes.
func respondProviderError(c *gin.Context, perr *providers.Error) {
	switch perr.Kind {
	case providers.KindAuth:
		respondError(c, http.StatusBadGateway, errTypeUpstream, perr.Error())
	case providers.KindNotFound:
		respondError(c, http.StatusNotFound, errTypeNotFound, perr.Error())
	case providers.KindConflict:
		respondError(c, http.StatusConflict, errTypeConflict, perr.Error())
	case providers.KindRateLimited:
		respondError(c, http.StatusTooManyRequests, errTypeRateLimited, perr.Error())
	case providers.KindQuotaExceeded:
		respondError(c, http.StatusTooManyRequests, errTypeQuota, perr.Error())
	case providers.KindUpstreamInvalid:
		respondError(c, http.StatusBadGateway, errTypeUpstream, perr.Error())
	default:
		respondError(c, http.StatusBadGateway, errTypeUpstream, perr.Error())
	}
}
