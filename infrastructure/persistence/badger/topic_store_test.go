package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"topicgraph/application/ports"
	pkgerrors "topicgraph/pkg/errors"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *TopicStore {
	t.Helper()
	store, err := Open("", true, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func page(id, parent string, at time.Time) ports.TopicRecord {
	return ports.TopicRecord{
		ID:          id,
		ContentType: "Page",
		ParentID:    parent,
		Attributes:  map[string]string{"key": "home", "title": "Home"},
		Versions:    []time.Time{at},
		Version:     at,
	}
}

func TestSaveAndLoad(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	id, err := store.Save(ctx, page("", "", t0))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Home", record.Attributes["title"])
	assert.True(t, t0.Equal(record.Version))

	next := page(id, "", t0.Add(time.Minute))
	next.Attributes["title"] = "Start"
	_, err = store.Save(ctx, next)
	require.NoError(t, err)

	old, err := store.LoadVersion(ctx, id, t0)
	require.NoError(t, err)
	assert.Equal(t, "Home", old.Attributes["title"])

	_, err = store.LoadVersion(ctx, id, t0.Add(time.Hour))
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = store.Load(ctx, "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestPartialSaveKeepsAssociations(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	full := page("a", "", t0)
	full.BaseID = "b"
	full.Relationships = map[string][]string{"related": {"b"}}
	_, err := store.Save(ctx, full)
	require.NoError(t, err)

	partial := page("a", "root", t0.Add(time.Second))
	partial.Partial = true
	_, err = store.Save(ctx, partial)
	require.NoError(t, err)

	record, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "root", record.ParentID)
	assert.Equal(t, "b", record.BaseID)
	assert.Equal(t, []string{"b"}, record.Relationships["related"])
}

func TestDeleteStripsAssociations(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Save(ctx, page(id, "", t0))
		require.NoError(t, err)
	}
	linked := page("c", "", t0.Add(time.Second))
	linked.Relationships = map[string][]string{"related": {"a", "b"}}
	linked.References = map[string]string{"hero": "a"}
	_, err := store.Save(ctx, linked)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, []string{"a"}))

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].ID)
	assert.Equal(t, []string{"b"}, records[1].Relationships["related"])
	assert.Empty(t, records[1].References)

	_, err = store.LoadVersion(ctx, "a", t0)
	assert.True(t, pkgerrors.IsNotFound(err), "snapshots go with the topic")
}
