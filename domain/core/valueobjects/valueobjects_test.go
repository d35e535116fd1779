package valueobjects

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "topicgraph/pkg/errors"
)

func TestTopicID(t *testing.T) {
	t.Run("zero value is new", func(t *testing.T) {
		var id TopicID
		assert.True(t, id.IsZero())
		assert.False(t, NewTopicID().IsZero())
	})

	t.Run("parse rejects garbage", func(t *testing.T) {
		_, err := NewTopicIDFromString("")
		assert.Error(t, err)
		_, err = NewTopicIDFromString("not-a-uuid")
		assert.Error(t, err)
	})

	t.Run("json round trip", func(t *testing.T) {
		id := NewTopicID()
		data, err := json.Marshal(id)
		require.NoError(t, err)

		var decoded TopicID
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.True(t, id.Equals(decoded))
	})

	t.Run("empty json string decodes to new", func(t *testing.T) {
		var decoded TopicID
		require.NoError(t, json.Unmarshal([]byte(`""`), &decoded))
		assert.True(t, decoded.IsZero())
	})
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{"simple", "Title", "title", false},
		{"underscore start", "_internal", "_internal", false},
		{"dotted", "seo.Description-v2", "seo.description-v2", false},
		{"empty", "", "", true},
		{"leading digit", "1st", "", true},
		{"whitespace", "page title", "", true},
		{"too long", strings.Repeat("a", DefaultMaxKeyLength+1), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeKey(tt.key, 0)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsInvalidKey(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, KeysEqual("Title", "TITLE"))
}

func TestTrackedValueIsImmutable(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	original := NewTrackedValue("Title", "Home", true, t0)
	updated := original.WithValue("Start", true, t1)
	cleaned := updated.Clean(t1)

	assert.Equal(t, "Home", original.Value())
	assert.Equal(t, t0, original.LastModified())
	assert.Equal(t, "Start", updated.Value())
	assert.True(t, updated.IsDirty())
	assert.False(t, cleaned.IsDirty())
	assert.Equal(t, "Title", cleaned.Key())
	assert.Equal(t, t1, cleaned.LastModified())
}
