// Package common carries per-operation values through contexts
package common

import (
	"context"

	"go.uber.org/zap"
)

// ContextKey represents a context key type
type ContextKey string

// Context keys
const (
	ContextKeyOperationID ContextKey = "operation_id"
	ContextKeyActor       ContextKey = "actor"
)

// WithOperationID adds an operation ID to context
func WithOperationID(ctx context.Context, operationID string) context.Context {
	return context.WithValue(ctx, ContextKeyOperationID, operationID)
}

// GetOperationID extracts the operation ID from context
func GetOperationID(ctx context.Context) (string, bool) {
	operationID, ok := ctx.Value(ContextKeyOperationID).(string)
	return operationID, ok && operationID != ""
}

// WithActor records who started the operation
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// GetActor extracts the actor from context
func GetActor(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(ContextKeyActor).(string)
	return actor, ok && actor != ""
}

// LogFields returns the context values as log fields
func LogFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id, ok := GetOperationID(ctx); ok {
		fields = append(fields, zap.String("operationID", id))
	}
	if actor, ok := GetActor(ctx); ok {
		fields = append(fields, zap.String("actor", actor))
	}
	return fields
}
