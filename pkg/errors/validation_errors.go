package errors

import (
	"fmt"
	"sort"
	"strings"
)

// FieldError is a single failed rule on one field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors aggregates multiple validation errors
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// NewValidationErrors creates a new validation errors collection
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]FieldError, 0),
	}
}

// Add adds a validation error
func (v *ValidationErrors) Add(field string, message string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Message: message})
}

// Addf adds a formatted validation error
func (v *ValidationErrors) Addf(field string, format string, args ...interface{}) {
	v.Add(field, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are validation errors
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}

	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// ToMap groups messages by field
func (v *ValidationErrors) ToMap() map[string][]string {
	result := make(map[string][]string)
	for _, err := range v.Errors {
		result[err.Field] = append(result[err.Field], err.Message)
	}
	return result
}

// AsAppError folds the collection into a single VALIDATION AppError, or nil
// when nothing failed.
func (v *ValidationErrors) AsAppError() error {
	if !v.HasErrors() {
		return nil
	}

	fields := make([]string, 0, len(v.Errors))
	seen := make(map[string]bool)
	for _, err := range v.Errors {
		if !seen[err.Field] {
			seen[err.Field] = true
			fields = append(fields, err.Field)
		}
	}
	sort.Strings(fields)

	return NewValidationError(v.Error()).
		WithDetail("fields", fields).
		WithCause(v)
}
