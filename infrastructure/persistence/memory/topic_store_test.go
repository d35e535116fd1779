package memory

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

func record(id string, at time.Time, title string) ports.TopicRecord {
	return ports.TopicRecord{
		ID:          id,
		ContentType: "Page",
		Attributes:  map[string]string{"key": "home", "title": title},
		Versions:    []time.Time{at},
		Version:     at,
	}
}

func TestTopicStore(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		run  func(t *testing.T, store *TopicStore)
	}{
		{
			name: "save assigns identity and keeps every version",
			run: func(t *testing.T, store *TopicStore) {
				id, err := store.Save(ctx, record("", t0, "Home"))
				require.NoError(t, err)
				require.NotEmpty(t, id)

				_, err = store.Save(ctx, record(id, t0.Add(time.Second), "Start"))
				require.NoError(t, err)

				current, err := store.Load(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, "Start", current.Attributes["title"])

				old, err := store.LoadVersion(ctx, id, t0)
				require.NoError(t, err)
				assert.Equal(t, "Home", old.Attributes["title"])
				assert.Equal(t, 1, store.Len())
			},
		},
		{
			name: "returned records are copies",
			run: func(t *testing.T, store *TopicStore) {
				_, err := store.Save(ctx, record("a", t0, "Home"))
				require.NoError(t, err)

				loaded, err := store.Load(ctx, "a")
				require.NoError(t, err)
				loaded.Attributes["title"] = "changed"

				again, err := store.Load(ctx, "a")
				require.NoError(t, err)
				assert.Equal(t, "Home", again.Attributes["title"])
			},
		},
		{
			name: "partial save keeps stored associations",
			run: func(t *testing.T, store *TopicStore) {
				full := record("a", t0, "Home")
				full.References = map[string]string{"hero": "b"}
				_, err := store.Save(ctx, full)
				require.NoError(t, err)

				partial := record("a", t0.Add(time.Second), "Start")
				partial.Partial = true
				_, err = store.Save(ctx, partial)
				require.NoError(t, err)

				current, err := store.Load(ctx, "a")
				require.NoError(t, err)
				assert.Equal(t, "Start", current.Attributes["title"])
				assert.Equal(t, "b", current.References["hero"])
			},
		},
		{
			name: "delete strips associations and snapshots",
			run: func(t *testing.T, store *TopicStore) {
				_, err := store.Save(ctx, record("a", t0, "A"))
				require.NoError(t, err)
				linked := record("b", t0, "B")
				linked.Relationships = map[string][]string{"related": {"a"}}
				_, err = store.Save(ctx, linked)
				require.NoError(t, err)

				require.NoError(t, store.Delete(ctx, []string{"a"}))

				records, err := store.LoadAll(ctx)
				require.NoError(t, err)
				require.Len(t, records, 1)
				assert.Empty(t, records[0].Relationships["related"])

				_, err = store.Load(ctx, "a")
				assert.True(t, pkgerrors.IsNotFound(err))
				_, err = store.LoadVersion(ctx, "a", t0)
				assert.True(t, pkgerrors.IsNotFound(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, NewTopicStore(zaptest.NewLogger(t)))
		})
	}
}
