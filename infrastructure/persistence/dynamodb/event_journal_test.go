package dynamodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"topicgraph/domain/core/valueobjects"
	"topicgraph/domain/events"
)

func TestEventJournal(t *testing.T) {
	client := newFakeClient()
	journal := NewEventJournal(client, "topics", 24*time.Hour, zaptest.NewLogger(t))
	ctx := context.Background()

	id := valueobjects.NewTopicID()
	other := valueobjects.NewTopicID()
	batch := []events.DomainEvent{
		events.NewTopicSaved(id, "Page", "root:home", true, t0),
		events.NewTopicRenamed(id, "home", "start", t0.Add(time.Second)),
		events.NewTopicSaved(other, "Page", "root:other", true, t0),
	}
	require.NoError(t, journal.PublishBatch(ctx, batch))

	entries, err := journal.Entries(ctx, id.String(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	got := []string{entries[0].EventType, entries[1].EventType}
	assert.ElementsMatch(t, []string{events.TypeTopicSaved, events.TypeTopicRenamed}, got)
	for _, e := range entries {
		assert.Equal(t, id.String(), e.AggregateID)
		assert.Equal(t, e.Timestamp.Add(24*time.Hour).Unix(), e.TTL)
		if e.EventType == events.TypeTopicRenamed {
			assert.Equal(t, "start", e.EventData["new_key"])
		}
	}

	limited, err := journal.Entries(ctx, id.String(), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	scanned, err := NewTopicStore(client, "topics", zaptest.NewLogger(t)).LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, scanned, "journal entries are not topics")
}
