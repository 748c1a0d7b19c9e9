package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
	"github.com/MisreadableMind/word-to-site-ai/pkg/proxy"
	"github.com/MisreadableMind/word-to-site-ai/pkg/store"
)

func respondTo(err error) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondServiceError(c, err)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "validation error",
			err:        models.NewValidationError("domain", "must be a fully qualified domain name"),
			wantStatus: http.StatusBadRequest,
			wantType:   errTypeValidation,
		},
		{
			name:       "not found",
			err:        fmt.Errorf("failed to load: %w", store.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantType:   errTypeNotFound,
		},
		{
			name:       "duplicate domain",
			err:        fmt.Errorf("%w: example.com", store.ErrDuplicateDomain),
			wantStatus: http.StatusConflict,
			wantType:   errTypeConflict,
		},
		{
			name:       "unknown tier",
			err:        fmt.Errorf("%w: platinum", store.ErrUnknownTier),
			wantStatus: http.StatusBadRequest,
			wantType:   errTypeValidation,
		},
		{
			name:       "invalid input",
			err:        fmt.Errorf("%w: domain is required", store.ErrInvalidInput),
			wantStatus: http.StatusBadRequest,
			wantType:   errTypeValidation,
		},
		{
			name:       "provider auth failure maps to upstream",
			err:        providers.NewError("cloudflare", providers.KindAuth, "invalid token"),
			wantStatus: http.StatusBadGateway,
			wantType:   errTypeUpstream,
		},
		{
			name:       "provider rate limit",
			err:        providers.NewError("namecheap", providers.KindRateLimited, "slow down"),
			wantStatus: http.StatusTooManyRequests,
			wantType:   errTypeRateLimited,
		},
		{
			name:       "provider not found",
			err:        providers.NewError("instawp", providers.KindNotFound, "no such site"),
			wantStatus: http.StatusNotFound,
			wantType:   errTypeNotFound,
		},
		{
			name:       "unexpected error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   errTypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := respondTo(tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeEnvelope(t, rec)
			assert.Equal(t, tt.wantType, body.Error.Type)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestRespondServiceErrorGatewayPassthrough(t *testing.T) {
	gerr := &proxy.Error{
		Status:  http.StatusTooManyRequests,
		Type:    proxy.ErrTypeQuotaExceeded,
		Message: "monthly token quota exceeded",
		Usage:   &models.UsageSnapshot{Used: 100, Limit: 100, Remaining: 0},
	}

	rec := respondTo(gerr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	body := decodeEnvelope(t, rec)
	assert.Equal(t, proxy.ErrTypeQuotaExceeded, body.Error.Type)
	require.NotNil(t, body.Error.Usage)
	assert.Equal(t, int64(100), body.Error.Usage.Used)
	assert.Equal(t, int64(0), body.Error.Usage.Remaining)
}

func TestRespondConfigurationRequired(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondConfigurationRequired(c, "Cloudflare credentials are missing")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.True(t, body.Error.ConfigurationRequired)
	assert.Equal(t, errTypeValidation, body.Error.Type)
}

func TestHiddenUsageOmittedFromEnvelope(t *testing.T) {
	rec := respondTo(models.NewValidationError("url", "is required"))
	assert.NotContains(t, rec.Body.String(), `"usage"`)
	assert.NotContains(t, rec.Body.String(), `"configurationRequired"`)
}
