package dynamodb

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"topicgraph/application/ports"
	pkgerrors "topicgraph/pkg/errors"
)

// fakeClient keeps items in memory. It understands just enough of each call
// for the store: conditions only mean attribute_not_exists(PK), queries match
// the partition key value, scans return current topic items and batches apply puts and deletes.
type fakeClient struct {
	mu          sync.Mutex
	items       map[string]map[string]types.AttributeValue
	unprocessed int
	batchCalls  int
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[string]types.AttributeValue)}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func keyOf(item map[string]types.AttributeValue) string {
	return str(item["PK"]) + "|" + str(item["SK"])
}

func (f *fakeClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := keyOf(in.Item)
	if in.ConditionExpression != nil {
		if _, exists := f.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("item exists")}
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pk string
	for _, v := range in.ExpressionAttributeValues {
		pk = str(v)
	}
	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		if str(item["PK"]) == pk {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return keyOf(out[i]) < keyOf(out[j]) })
	return &dynamodb.QueryOutput{Items: out}, nil
}

func (f *fakeClient) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		if str(item["SK"]) == currentSK && str(item["EntityType"]) == entityTopic {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return keyOf(out[i]) < keyOf(out[j]) })
	return &dynamodb.ScanOutput{Items: out}, nil
}

func (f *fakeClient) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, requests := range in.RequestItems {
		for i, r := range requests {
			if f.unprocessed > 0 && i == len(requests)-1 {
				f.unprocessed--
				out.UnprocessedItems[table] = append(out.UnprocessedItems[table], r)
				continue
			}
			if r.PutRequest != nil {
				f.items[keyOf(r.PutRequest.Item)] = r.PutRequest.Item
				continue
			}
			delete(f.items, keyOf(r.DeleteRequest.Key))
		}
	}
	return out, nil
}

func newStore(t *testing.T) (*TopicStore, *fakeClient) {
	client := newFakeClient()
	return NewTopicStore(client, "topics", zaptest.NewLogger(t)), client
}

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestTopicStoreSaveAndLoad(t *testing.T) {
	store, client := newStore(t)
	ctx := context.Background()

	id, err := store.Save(ctx, ports.TopicRecord{
		ContentType: "Page",
		SortOrder:   2,
		Attributes:  map[string]string{"key": "home", "title": "Home"},
		Versions:    []time.Time{t0},
		Version:     t0,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Len(t, client.items, 2, "current item plus one version")

	record, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, record.ID)
	assert.Equal(t, "Home", record.Attributes["title"])
	assert.Equal(t, 2, record.SortOrder)
	assert.True(t, t0.Equal(record.Version))

	version, err := store.LoadVersion(ctx, id, t0)
	require.NoError(t, err)
	assert.Equal(t, "home", version.Attributes["key"])

	_, err = store.LoadVersion(ctx, id, t0.Add(time.Second))
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = store.Load(ctx, "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestTopicStorePartialSaveKeepsAssociations(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	id, err := store.Save(ctx, ports.TopicRecord{
		ContentType:   "Page",
		Attributes:    map[string]string{"key": "home"},
		Relationships: map[string][]string{"related": {"other"}},
		References:    map[string]string{"hero": "other"},
		BaseID:        "base",
		Version:       t0,
	})
	require.NoError(t, err)

	_, err = store.Save(ctx, ports.TopicRecord{
		ID:          id,
		ContentType: "Page",
		Attributes:  map[string]string{"key": "home", "title": "new"},
		Version:     t0.Add(time.Second),
		Partial:     true,
	})
	require.NoError(t, err)

	record, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new", record.Attributes["title"])
	assert.Equal(t, []string{"other"}, record.Relationships["related"])
	assert.Equal(t, "other", record.References["hero"])
	assert.Equal(t, "base", record.BaseID)
}

func TestTopicStoreLoadAll(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	for i, key := range []string{"a", "b", "c"} {
		_, err := store.Save(ctx, ports.TopicRecord{
			ContentType: "Page",
			Attributes:  map[string]string{"key": key},
			Version:     t0.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestTopicStoreDelete(t *testing.T) {
	store, client := newStore(t)
	ctx := context.Background()
	client.unprocessed = 1

	victim, err := store.Save(ctx, ports.TopicRecord{ContentType: "Page", Version: t0})
	require.NoError(t, err)
	_, err = store.Save(ctx, ports.TopicRecord{ID: victim, ContentType: "Page", Version: t0.Add(time.Second)})
	require.NoError(t, err)

	holder, err := store.Save(ctx, ports.TopicRecord{
		ContentType:   "Page",
		Relationships: map[string][]string{"related": {victim, "kept"}},
		References:    map[string]string{"hero": victim},
		Version:       t0,
	})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, []string{victim}))
	assert.Equal(t, 2, client.batchCalls, "unprocessed items are retried")

	_, err = store.Load(ctx, victim)
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = store.LoadVersion(ctx, victim, t0)
	assert.True(t, pkgerrors.IsNotFound(err))

	record, err := store.Load(ctx, holder)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, record.Relationships["related"])
	assert.NotContains(t, record.References, "hero")
}

func TestTopicStoreNewRecordConflict(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	record := ports.TopicRecord{ID: "fixed", ContentType: "Page", Version: t0}

	require.NoError(t, store.put(ctx, record, currentSK, true))
	err := store.put(ctx, record, currentSK, true)
	assert.True(t, pkgerrors.IsConflict(err))
}
