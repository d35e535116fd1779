package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCarryIdentity(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		errType  ErrorType
		contains []string
		check    func(error) bool
	}{
		{"invalid key", NewInvalidKeyError("bad key", "contains whitespace"), ErrorTypeInvalidKey, []string{"bad key"}, IsInvalidKey},
		{"duplicate key", NewDuplicateKeyError("title"), ErrorTypeDuplicateKey, []string{"title"}, IsDuplicateKey},
		{"dispatch loop", NewDispatchLoopError("key", 3), ErrorTypeDispatchLoop, []string{"key", "3"}, IsDispatchLoop},
		{"invalid argument", NewInvalidArgumentError("hopBudget", "must be within [0, 100]"), ErrorTypeInvalidArgument, []string{"hopBudget"}, IsInvalidArgument},
		{"schema not found", NewSchemaNotFoundError("Page", "root:home"), ErrorTypeSchemaNotFound, []string{"Page", "root:home"}, IsSchemaNotFound},
		{"referential integrity", NewReferentialIntegrityError("root:q", "root:p:r", "base topic would be orphaned"), ErrorTypeReferentialIntegrity, []string{"root:q", "root:p:r"}, IsReferentialIntegrity},
		{"has descendants", NewHasDescendantsError("root:p", 2), ErrorTypeHasDescendants, []string{"root:p", "2"}, IsHasDescendants},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.errType, tt.err.Type)
			for _, fragment := range tt.contains {
				assert.Contains(t, tt.err.Error(), fragment)
			}
			assert.True(t, tt.check(tt.err))
			assert.NotEmpty(t, tt.err.StackTrace)
		})
	}
}

func TestIsTypeThroughWrapping(t *testing.T) {
	base := NewHasDescendantsError("root:p", 1)
	wrapped := fmt.Errorf("delete failed: %w", base)

	assert.True(t, IsHasDescendants(wrapped))
	assert.False(t, IsReferentialIntegrity(wrapped))
	assert.Same(t, base, GetAppError(wrapped))
	assert.False(t, IsAppError(errors.New("plain")))
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "context"))
	})

	t.Run("app error keeps type", func(t *testing.T) {
		err := Wrapf(NewNotFoundError("topic 42"), "load %s", "root")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "load root")
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		cause := errors.New("disk full")
		err := Wrap(cause, "persist")
		assert.True(t, IsType(err, ErrorTypeInternal))
		assert.ErrorIs(t, err, cause)
	})
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	assert.NoError(t, v.AsAppError())

	v.Add("title", "not declared by content type Page")
	v.Addf("body", "exceeds %d characters", 10)
	v.Add("title", "second problem")

	require.True(t, v.HasErrors())
	assert.Len(t, v.ToMap()["title"], 2)

	err := v.AsAppError()
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, []string{"body", "title"}, GetAppError(err).Details["fields"])
}
