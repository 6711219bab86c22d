package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateURL checks that value is an absolute http(s) URL.
func ValidateURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: "must be an absolute http(s) URL",
		}
	}
	return nil
}

// ValidatePageSize checks that n is within 1 and MaxPageSize.
func ValidatePageSize(field string, n int) error {
	if n < 1 || n > MaxPageSize {
		return ValidationError{
			Field:   field,
			Value:   n,
			Message: fmt.Sprintf("must be between 1 and %d", MaxPageSize),
		}
	}
	return nil
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	var errs ValidationErrors
	collect := func(err error) {
		if ve, ok := err.(ValidationError); ok {
			errs = append(errs, ve)
		}
	}

	collect(ValidateURL("gateway_url", c.GatewayURL))
	collect(ValidateURL("keycloak_url", c.KeycloakURL))
	collect(ValidateOneOf("output_format", c.OutputFormat, []string{OutputTable, OutputJSON, OutputYAML}))
	collect(ValidatePageSize("page_size", c.PageSize))
	collect(ValidateOneOf("cache_backend", c.CacheBackend, []string{CacheFile, CacheSQLite}))
	if strings.TrimSpace(c.KeycloakRealm) == "" {
		errs.Add("keycloak_realm", "is required")
	}
	if strings.TrimSpace(c.KeycloakClientID) == "" {
		errs.Add("keycloak_client_id", "is required")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
