// Package providers defines the shared error shape and retry policy for all
// external provider clients (registrar, DNS, host, scraper, AI vendors).
//
// Every client in the subpackages returns *providers.Error so callers can
// decide fatality and retryability without knowing vendor specifics.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
)

// Kind classifies a provider failure independent of the vendor.
type Kind string

const (
	KindNetwork         Kind = "network"
	KindTimeout         Kind = "timeout"
	KindAuth            Kind = "auth"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindRateLimited     Kind = "rate_limited"
	KindQuotaExceeded   Kind = "quota_exceeded"
	KindUpstreamInvalid Kind = "upstream_invalid"
	KindUpstreamFailure Kind = "upstream_failure"
)

// Error is the uniform failure shape surfaced by every provider client.
type Error struct {
	Provider      string
	Kind          Kind
	HTTPStatus    int
	VendorMessage string
	Retryable     bool
}

func (e *Error) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Provider, e.Kind, e.HTTPStatus, e.VendorMessage)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.VendorMessage)
}

// NewError builds an Error with retryability derived from the kind.
func NewError(provider string, kind Kind, message string) *Error {
	return &Error{
		Provider:      provider,
		Kind:          kind,
		VendorMessage: message,
		Retryable:     kindRetryable(kind),
	}
}

// FromStatus classifies an HTTP response status into the uniform shape.
func FromStatus(provider string, status int, message string) *Error {
	kind := ClassifyStatus(status)
	return &Error{
		Provider:      provider,
		Kind:          kind,
		HTTPStatus:    status,
		VendorMessage: message,
		Retryable:     kindRetryable(kind),
	}
}

// FromTransport classifies a transport-level error (dial, TLS, deadline).
func FromTransport(provider string, err error) *Error {
	kind := KindNetwork
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		kind = KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = KindTimeout
	}
	return &Error{
		Provider:      provider,
		Kind:          kind,
		VendorMessage: err.Error(),
		Retryable:     true,
	}
}

// ClassifyStatus maps an HTTP status code to a Kind.
func ClassifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status == http.StatusPaymentRequired:
		return KindQuotaExceeded
	case status >= 500:
		return KindUpstreamFailure
	default:
		return KindUpstreamInvalid
	}
}

func kindRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork, KindTimeout, KindRateLimited, KindUpstreamFailure:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is a provider error eligible for retry.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not a provider error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// AsError extracts the provider error from err, if any.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
