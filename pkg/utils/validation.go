package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "topicgraph/pkg/errors"
)

var validate = validator.New()

// ValidateStruct validates a struct based on its validation tags. Failures
// are returned as a VALIDATION AppError listing every field.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors into field errors
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.NewInternalError("struct validation failed").WithCause(err)
	}
	fields := pkgerrors.NewValidationErrors()
	for _, e := range validationErrors {
		fields.Add(e.Field(), formatFieldError(e))
	}
	return fields.AsAppError()
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "min":
		return field + " must be at least " + e.Param()
	case "max":
		return field + " must be at most " + e.Param()
	case "oneof":
		return field + " must be one of: " + e.Param()
	default:
		return field + " is invalid"
	}
}
