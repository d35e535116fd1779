package common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, LogFields(ctx))

	_, ok := GetOperationID(WithOperationID(ctx, ""))
	assert.False(t, ok, "empty IDs are absent")

	ctx = WithActor(WithOperationID(ctx, "op-1"), "alice")
	id, ok := GetOperationID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "op-1", id)

	fields := LogFields(ctx)
	assert.Len(t, fields, 2)
	assert.Equal(t, "operationID", fields[0].Key)
	assert.Equal(t, "alice", fields[1].String)
}
