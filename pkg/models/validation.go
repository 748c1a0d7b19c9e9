package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes one invalid input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidationErrors aggregates every invalid field found in one pass.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// IsValidationError reports whether err is (or wraps) a validation failure.
func IsValidationError(err error) bool {
	var single *ValidationError
	if errors.As(err, &single) {
		return true
	}
	var list ValidationErrors
	return errors.As(err, &list)
}

var brandColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// IsBrandColor reports whether s is a 6-digit hex color with leading hash.
func IsBrandColor(s string) bool {
	return brandColorPattern.MatchString(s)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("brandcolor", func(fl validator.FieldLevel) bool {
			return IsBrandColor(fl.Field().String())
		})
	})
	return validate
}

// ValidateStruct runs tag validation on v and converts failures into the
// aggregated ValidationErrors shape.
func ValidateStruct(v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &ValidationError{
			Field:   fe.Namespace(),
			Message: messageForTag(fe),
		})
	}
	return out
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "brandcolor":
		return "must be a 6-digit hex color like #1A2B3C"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "fqdn":
		return "must be a valid domain name"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// ValidateDeploymentContext validates a constructed deployment context.
func ValidateDeploymentContext(d *DeploymentContext) error {
	if d == nil {
		return NewValidationError("deploymentContext", "is required")
	}
	return ValidateStruct(d)
}

// ValidateContentContext validates a constructed content context.
func ValidateContentContext(c *ContentContext) error {
	if c == nil {
		return NewValidationError("contentContext", "is required")
	}
	return ValidateStruct(c)
}
