package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"topicgraph/domain/events"
	pkgerrors "topicgraph/pkg/errors"
)

const entityEvent = "EVENT"

// EventJournal appends topic events to the table next to the topics they
// describe, so the change log of a topic can be listed later
type EventJournal struct {
	client    Client
	tableName string
	retention time.Duration
	logger    *zap.Logger
}

// JournalEntry represents how events are stored in DynamoDB
type JournalEntry struct {
	PK          string                 `dynamodbav:"PK"` // EVENTS#<aggregate_id>
	SK          string                 `dynamodbav:"SK"` // EVENT#<timestamp>#<event_id>
	EntityType  string                 `dynamodbav:"EntityType"`
	EventID     string                 `dynamodbav:"EventID"`
	EventType   string                 `dynamodbav:"EventType"`
	AggregateID string                 `dynamodbav:"AggregateID"`
	EventData   map[string]interface{} `dynamodbav:"EventData"`
	Timestamp   time.Time              `dynamodbav:"Timestamp"`
	Version     int                    `dynamodbav:"Version"`

	// TTL for automatic cleanup (optional)
	TTL int64 `dynamodbav:"TTL,omitempty"`
}

// NewEventJournal creates a journal. A zero retention keeps events forever.
func NewEventJournal(client Client, tableName string, retention time.Duration, logger *zap.Logger) *EventJournal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventJournal{
		client:    client,
		tableName: tableName,
		retention: retention,
		logger:    logger,
	}
}

// Publish appends a single event
func (j *EventJournal) Publish(ctx context.Context, event events.DomainEvent) error {
	return j.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch appends events in batches of 25
func (j *EventJournal) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	requests := make([]types.WriteRequest, 0, len(domainEvents))
	for _, event := range domainEvents {
		entry, err := j.entry(event)
		if err != nil {
			return err
		}
		item, err := attributevalue.MarshalMap(entry)
		if err != nil {
			return pkgerrors.NewDatabaseError("marshal journal entry", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	for start := 0; start < len(requests); start += maxBatchWrite {
		end := start + maxBatchWrite
		if end > len(requests) {
			end = len(requests)
		}
		if err := batchWrite(ctx, j.client, j.tableName, requests[start:end]); err != nil {
			return err
		}
	}

	j.logger.Debug("Journaled topic events", zap.Int("count", len(requests)))
	return nil
}

func (j *EventJournal) entry(event events.DomainEvent) (*JournalEntry, error) {
	// round-trip through JSON to store the event's own fields as a map
	data, err := json.Marshal(event)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to marshal event").WithCause(err)
	}
	eventData := make(map[string]interface{})
	if err := json.Unmarshal(data, &eventData); err != nil {
		return nil, pkgerrors.NewInternalError("failed to decode event").WithCause(err)
	}

	timestamp := event.GetTimestamp().UTC()
	eventID := uuid.New().String()
	entry := &JournalEntry{
		PK:          journalPK(event.GetAggregateID()),
		SK:          fmt.Sprintf("EVENT#%s#%s", timestamp.Format(time.RFC3339Nano), eventID),
		EntityType:  entityEvent,
		EventID:     eventID,
		EventType:   event.GetEventType(),
		AggregateID: event.GetAggregateID(),
		EventData:   eventData,
		Timestamp:   timestamp,
		Version:     event.GetVersion(),
	}
	if j.retention > 0 {
		entry.TTL = timestamp.Add(j.retention).Unix()
	}
	return entry, nil
}

func journalPK(aggregateID string) string {
	return "EVENTS#" + aggregateID
}

// Entries returns up to limit journal entries of a topic, newest first.
// A limit of zero returns everything.
func (j *EventJournal) Entries(ctx context.Context, topicID string, limit int) ([]JournalEntry, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(journalPK(topicID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build query expression").WithCause(err)
	}

	paginator := dynamodb.NewQueryPaginator(j.client, &dynamodb.QueryInput{
		TableName:                 aws.String(j.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	})

	var entries []JournalEntry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query journal", err).WithDetail("topicID", topicID)
		}
		for _, item := range page.Items {
			var entry JournalEntry
			if err := attributevalue.UnmarshalMap(item, &entry); err != nil {
				j.logger.Warn("Skipping unreadable journal entry", zap.Error(err))
				continue
			}
			entries = append(entries, entry)
			if limit > 0 && len(entries) == limit {
				return entries, nil
			}
		}
	}
	return entries, nil
}
