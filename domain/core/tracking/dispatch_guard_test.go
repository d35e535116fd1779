package tracking

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "topicgraph/pkg/errors"
)

func guardedStrings(caps func(c **Collection[string]) map[string]Capability[string], depth int) *Collection[string] {
	var c *Collection[string]
	opts := stringOptions()
	opts.Guard = NewDispatchGuard(caps(&c), depth)
	c = NewCollection[string](&fakeOwner{}, opts)
	return c
}

func TestDispatchGuardRoutesThroughCapability(t *testing.T) {
	calls := 0
	c := guardedStrings(func(c **Collection[string]) map[string]Capability[string] {
		return map[string]Capability[string]{
			"Key": func(value string, commit Commit[string]) error {
				calls++
				return commit(strings.ToLower(value))
			},
		}
	}, 0)

	require.NoError(t, c.SetValue("KEY", "Home"))
	assert.Equal(t, 1, calls)
	v, ok := c.Value("key")
	require.True(t, ok)
	assert.Equal(t, "home", v, "capability decides the committed value")
	assert.Equal(t, StateIdle, c.opts.Guard.State("key"))

	// other keys pass straight through
	require.NoError(t, c.SetValue("title", "Home"))
	assert.Equal(t, 1, calls)
}

func TestDispatchGuardRejectionLeavesCollectionUntouched(t *testing.T) {
	rejected := errors.New("sibling already uses that key")
	c := guardedStrings(func(c **Collection[string]) map[string]Capability[string] {
		return map[string]Capability[string]{
			"key": func(value string, commit Commit[string]) error {
				if value == "taken" {
					return rejected
				}
				return commit(value)
			},
		}
	}, 0)

	err := c.SetValue("key", "taken")
	assert.ErrorIs(t, err, rejected)
	assert.False(t, c.Has("key"))
	assert.Equal(t, StateIdle, c.opts.Guard.State("key"))

	// guard state unwound: a later valid write is dispatched normally
	require.NoError(t, c.SetValue("key", "free"))
	v, _ := c.Value("key")
	assert.Equal(t, "free", v)
}

func TestDispatchGuardUnwindsRegistrationOnError(t *testing.T) {
	boom := errors.New("boom")
	var guard *DispatchGuard[string]
	c := guardedStrings(func(c **Collection[string]) map[string]Capability[string] {
		return map[string]Capability[string]{
			"key": func(value string, _ Commit[string]) error {
				guard.Register("key", value)
				return boom
			},
		}
	}, 0)
	guard = c.opts.Guard

	require.ErrorIs(t, c.SetValue("key", "x"), boom)
	assert.True(t, guard.Register("key", "y"), "no stale registration left behind")
}

func TestDispatchLoopIsBounded(t *testing.T) {
	calls := 0
	c := guardedStrings(func(c **Collection[string]) map[string]Capability[string] {
		return map[string]Capability[string]{
			"key": func(value string, _ Commit[string]) error {
				calls++
				// wrong: re-enters the public path instead of committing
				return (*c).SetValue("key", value)
			},
		}
	}, 3)

	err := c.SetValue("key", "loop")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsDispatchLoop(err))
	assert.Contains(t, err.Error(), `"key"`)
	assert.Equal(t, 3, calls)
	assert.False(t, c.Has("key"))
	assert.Equal(t, StateIdle, c.opts.Guard.State("key"))
}

func TestRegister(t *testing.T) {
	g := NewDispatchGuard[string](nil, 0)
	assert.True(t, g.Register("Key", "a"))
	assert.False(t, g.Register("KEY", "b"))

	ok, err := g.Enforce("key", "a", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StateCommitting, g.State("key"))
	g.committed("key")
	assert.Equal(t, StateIdle, g.State("key"))

	assert.True(t, g.Register("key", "c"), "pending entry was consumed")
}

func TestNilGuardPassesThrough(t *testing.T) {
	var g *DispatchGuard[string]
	ok, err := g.Enforce("key", "x", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, g.HasCapability("key"))
	assert.Equal(t, "idle", g.State("key").String())
}

func TestCommitCallbackKeepsWriteOptions(t *testing.T) {
	ts := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	c := guardedStrings(func(c **Collection[string]) map[string]Capability[string] {
		return map[string]Capability[string]{
			"key": func(value string, commit Commit[string]) error {
				return commit(value)
			},
		}
	}, 0)

	require.NoError(t, c.SetValue("key", "home", At(ts)))
	item, ok := c.Item("key")
	require.True(t, ok)
	assert.True(t, ts.Equal(item.LastModified()))
}

func TestCommitRejectsPendingAndInvalidKeys(t *testing.T) {
	var guard *DispatchGuard[string]
	c := guardedStrings(func(c **Collection[string]) map[string]Capability[string] {
		return map[string]Capability[string]{
			"key": func(value string, commit Commit[string]) error {
				guard.Register("key", "stale")
				return commit(value)
			},
		}
	}, 0)
	guard = c.opts.Guard

	err := c.SetValue("key", "home")
	assert.True(t, pkgerrors.IsConflict(err))
	assert.False(t, c.Has("key"))
	assert.True(t, guard.Register("key", "x"), "pending entry unwound with the dispatch")

	plain := NewCollection[string](&fakeOwner{}, stringOptions())
	err = plain.commitValue("has space", "x")
	assert.True(t, pkgerrors.IsInvalidKey(err))
	assert.Equal(t, 0, plain.Len())
}
