package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Collection and dispatch errors
	ErrorTypeInvalidKey      ErrorType = "INVALID_KEY"
	ErrorTypeDuplicateKey    ErrorType = "DUPLICATE_KEY"
	ErrorTypeDispatchLoop    ErrorType = "DISPATCH_LOOP"
	ErrorTypeInvalidArgument ErrorType = "INVALID_ARGUMENT"

	// Graph consistency errors
	ErrorTypeSchemaNotFound       ErrorType = "SCHEMA_NOT_FOUND"
	ErrorTypeReferentialIntegrity ErrorType = "REFERENTIAL_INTEGRITY"
	ErrorTypeHasDescendants       ErrorType = "HAS_DESCENDANTS"

	// Domain errors
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"

	// Application and infrastructure errors
	ErrorTypeInternal ErrorType = "INTERNAL"
	ErrorTypeDatabase ErrorType = "DATABASE"
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a single detail entry
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return b.String()
}

func newError(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		StackTrace: captureStackTrace(),
	}
}

// Constructor functions for common error types

// NewInvalidKeyError reports a malformed attribute, relationship or reference key
func NewInvalidKeyError(key, reason string) *AppError {
	return newError(ErrorTypeInvalidKey, fmt.Sprintf("invalid key %q: %s", key, reason)).
		WithDetail("key", key)
}

// NewDuplicateKeyError reports a low-level insert collision inside a collection
func NewDuplicateKeyError(key string) *AppError {
	return newError(ErrorTypeDuplicateKey, fmt.Sprintf("key %q already present in collection", key)).
		WithDetail("key", key)
}

// NewDispatchLoopError reports a capability that keeps re-entering the collection
func NewDispatchLoopError(key string, depth int) *AppError {
	return newError(ErrorTypeDispatchLoop,
		fmt.Sprintf("capability for key %q re-dispatched %d times without committing", key, depth)).
		WithDetail("key", key).
		WithDetail("depth", depth)
}

// NewInvalidArgumentError reports an out-of-range or missing parameter
func NewInvalidArgumentError(argument, message string) *AppError {
	return newError(ErrorTypeInvalidArgument, fmt.Sprintf("%s: %s", argument, message)).
		WithDetail("argument", argument)
}

// NewSchemaNotFoundError reports a topic whose content type has no descriptor
func NewSchemaNotFoundError(contentType, topic string) *AppError {
	return newError(ErrorTypeSchemaNotFound,
		fmt.Sprintf("no content type descriptor %q for topic %s", contentType, topic)).
		WithDetail("contentType", contentType).
		WithDetail("topic", topic)
}

// NewReferentialIntegrityError reports a dangling or orphaning association
func NewReferentialIntegrityError(topic, target, message string) *AppError {
	return newError(ErrorTypeReferentialIntegrity,
		fmt.Sprintf("topic %s -> %s: %s", topic, target, message)).
		WithDetail("topic", topic).
		WithDetail("target", target)
}

// NewHasDescendantsError reports a non-recursive delete of a topic with children
func NewHasDescendantsError(topic string, children int) *AppError {
	return newError(ErrorTypeHasDescendants,
		fmt.Sprintf("topic %s has %d children; delete recursively", topic, children)).
		WithDetail("topic", topic).
		WithDetail("children", children)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newError(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, message)
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	return newError(ErrorTypeDatabase, fmt.Sprintf("database operation '%s' failed", operation)).
		WithCause(err)
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	return newError(ErrorTypeExternal, fmt.Sprintf("external service '%s' error", service)).
		WithCause(err)
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsInvalidKey checks if an error is an invalid key error
func IsInvalidKey(err error) bool {
	return IsType(err, ErrorTypeInvalidKey)
}

// IsDuplicateKey checks if an error is a duplicate key error
func IsDuplicateKey(err error) bool {
	return IsType(err, ErrorTypeDuplicateKey)
}

// IsDispatchLoop checks if an error is a dispatch loop error
func IsDispatchLoop(err error) bool {
	return IsType(err, ErrorTypeDispatchLoop)
}

// IsInvalidArgument checks if an error is an invalid argument error
func IsInvalidArgument(err error) bool {
	return IsType(err, ErrorTypeInvalidArgument)
}

// IsSchemaNotFound checks if an error is a schema not found error
func IsSchemaNotFound(err error) bool {
	return IsType(err, ErrorTypeSchemaNotFound)
}

// IsReferentialIntegrity checks if an error is a referential integrity error
func IsReferentialIntegrity(err error) bool {
	return IsType(err, ErrorTypeReferentialIntegrity)
}

// IsHasDescendants checks if an error is a has-descendants error
func IsHasDescendants(err error) bool {
	return IsType(err, ErrorTypeHasDescendants)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}

// IsDatabase checks if an error is a database error
func IsDatabase(err error) bool {
	return IsType(err, ErrorTypeDatabase)
}

// IsExternal checks if an error is an external service error
func IsExternal(err error) bool {
	return IsType(err, ErrorTypeExternal)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, add context to message
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
