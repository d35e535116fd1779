package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"topicgraph/application/ports"
	"topicgraph/infrastructure/persistence/memory"
)

func TestInMemoryCacheExpiry(t *testing.T) {
	c := NewInMemoryCache(0)
	defer c.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, 10))
	v, ok := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(11 * time.Second)
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.sweep()
	assert.Equal(t, 0, c.Len())
}

// countingStore counts backend reads
type countingStore struct {
	ports.TopicStore
	loads    int
	versions int
}

func (s *countingStore) Load(ctx context.Context, id string) (*ports.TopicRecord, error) {
	s.loads++
	return s.TopicStore.Load(ctx, id)
}

func (s *countingStore) LoadVersion(ctx context.Context, id string, version time.Time) (*ports.TopicRecord, error) {
	s.versions++
	return s.TopicStore.LoadVersion(ctx, id, version)
}

func TestTopicStoreReadThrough(t *testing.T) {
	logger := zaptest.NewLogger(t)
	backend := &countingStore{TopicStore: memory.NewTopicStore(logger)}
	c := NewInMemoryCache(0)
	defer c.Close()
	store := NewTopicStore(backend, c, 60, logger)
	ctx := context.Background()

	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	id, err := store.Save(ctx, ports.TopicRecord{
		ContentType: "Page",
		Attributes:  map[string]string{"key": "home"},
		Version:     t0,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		record, err := store.Load(ctx, id)
		require.NoError(t, err)
		record.Attributes["key"] = "mutated"
	}
	assert.Equal(t, 1, backend.loads)

	record, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "home", record.Attributes["key"], "callers get copies")

	_, err = store.Save(ctx, ports.TopicRecord{
		ID:          id,
		ContentType: "Page",
		Attributes:  map[string]string{"key": "start"},
		Version:     t0.Add(time.Second),
	})
	require.NoError(t, err)
	record, err = store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "start", record.Attributes["key"])
	assert.Equal(t, 2, backend.loads)

	for i := 0; i < 2; i++ {
		snapshot, err := store.LoadVersion(ctx, id, t0)
		require.NoError(t, err)
		assert.Equal(t, "home", snapshot.Attributes["key"])
	}
	assert.Equal(t, 1, backend.versions)

	require.NoError(t, store.Delete(ctx, []string{id}))
	assert.Equal(t, 0, c.Len())
	_, err = store.Load(ctx, id)
	assert.Error(t, err)

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
