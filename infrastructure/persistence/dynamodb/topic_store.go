package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"topicgraph/application/ports"
	pkgerrors "topicgraph/pkg/errors"
)

const (
	entityTopic   = "TOPIC"
	currentSK     = "CURRENT"
	versionPrefix = "VERSION#"
)

// TopicStore implements ports.TopicStore on a single DynamoDB table. Each
// topic is a partition holding its current record and one item per version.
type TopicStore struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

// topicItem represents the DynamoDB item structure for a topic
type topicItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ports.TopicRecord
}

// NewTopicStore creates a new TopicStore
func NewTopicStore(client Client, tableName string, logger *zap.Logger) *TopicStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopicStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func topicPK(id string) string {
	return "TOPIC#" + id
}

func versionSK(version time.Time) string {
	return versionPrefix + version.UTC().Format(time.RFC3339Nano)
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// LoadAll scans every current record
func (s *TopicStore) LoadAll(ctx context.Context) ([]ports.TopicRecord, error) {
	filter := expression.Name("SK").Equal(expression.Value(currentSK)).
		And(expression.Name("EntityType").Equal(expression.Value(entityTopic)))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build scan expression").WithCause(err)
	}

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var records []ports.TopicRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("scan topics", err)
		}
		for _, raw := range page.Items {
			var item topicItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				s.logger.Warn("Skipping unreadable topic item", zap.Error(err))
				continue
			}
			records = append(records, item.TopicRecord)
		}
	}

	s.logger.Debug("Loaded topics from DynamoDB", zap.Int("count", len(records)))
	return records, nil
}

// Load returns the current record of id
func (s *TopicStore) Load(ctx context.Context, id string) (*ports.TopicRecord, error) {
	return s.get(ctx, id, currentSK)
}

// LoadVersion returns the record saved at version
func (s *TopicStore) LoadVersion(ctx context.Context, id string, version time.Time) (*ports.TopicRecord, error) {
	return s.get(ctx, id, versionSK(version))
}

func (s *TopicStore) get(ctx context.Context, id, sk string) (*ports.TopicRecord, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey(topicPK(id), sk),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get topic", err).WithDetail("topicID", id)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("topic %s (%s)", id, sk))
	}

	var item topicItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal topic", err).WithDetail("topicID", id)
	}
	return &item.TopicRecord, nil
}

// Save writes the current record and a version item. New records get an
// identity and must not collide with an existing partition.
func (s *TopicStore) Save(ctx context.Context, record ports.TopicRecord) (string, error) {
	isNew := record.IsNew()
	if isNew {
		record.ID = uuid.New().String()
	}

	if record.Partial && !isNew {
		stored, err := s.Load(ctx, record.ID)
		if err != nil && !pkgerrors.IsNotFound(err) {
			return "", err
		}
		record = record.MergePartial(stored)
	} else {
		record = record.MergePartial(nil)
	}

	if err := s.put(ctx, record, currentSK, isNew); err != nil {
		return "", err
	}
	if err := s.put(ctx, record, versionSK(record.Version), false); err != nil {
		return "", err
	}

	s.logger.Debug("Saved topic to DynamoDB",
		zap.String("topicID", record.ID),
		zap.Bool("created", isNew))
	return record.ID, nil
}

func (s *TopicStore) put(ctx context.Context, record ports.TopicRecord, sk string, mustNotExist bool) error {
	av, err := attributevalue.MarshalMap(topicItem{
		PK:          topicPK(record.ID),
		SK:          sk,
		EntityType:  entityTopic,
		TopicRecord: record,
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal topic", err).WithDetail("topicID", record.ID)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}
	if mustNotExist {
		expr, err := expression.NewBuilder().
			WithCondition(expression.Name("PK").AttributeNotExists()).
			Build()
		if err != nil {
			return pkgerrors.NewInternalError("failed to build condition").WithCause(err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return pkgerrors.NewConflictError(fmt.Sprintf("topic %s already exists", record.ID)).WithCause(err)
		}
		return pkgerrors.NewDatabaseError("put topic", err).WithDetail("topicID", record.ID)
	}
	return nil
}

// Delete removes every item of each topic, then strips associations other
// topics hold to them
func (s *TopicStore) Delete(ctx context.Context, ids []string) error {
	var requests []types.WriteRequest
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
		keys, err := s.partitionKeys(ctx, id)
		if err != nil {
			return err
		}
		for _, key := range keys {
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}})
		}
	}

	for start := 0; start < len(requests); start += maxBatchWrite {
		end := start + maxBatchWrite
		if end > len(requests) {
			end = len(requests)
		}
		if err := batchWrite(ctx, s.client, s.tableName, requests[start:end]); err != nil {
			return err
		}
	}

	records, err := s.LoadAll(ctx)
	if err != nil {
		return err
	}
	stripped := 0
	for _, record := range records {
		cleaned, changed := record.WithoutTargets(doomed)
		if !changed {
			continue
		}
		if err := s.put(ctx, cleaned, currentSK, false); err != nil {
			return err
		}
		stripped++
	}

	s.logger.Info("Deleted topics from DynamoDB",
		zap.Int("topics", len(ids)),
		zap.Int("items", len(requests)),
		zap.Int("stripped", stripped))
	return nil
}

func (s *TopicStore) partitionKeys(ctx context.Context, id string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(topicPK(id)))
	expr, err := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithProjection(expression.NamesList(expression.Name("PK"), expression.Name("SK"))).
		Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build query expression").WithCause(err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var keys []map[string]types.AttributeValue
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query topic items", err).WithDetail("topicID", id)
		}
		for _, item := range page.Items {
			keys = append(keys, map[string]types.AttributeValue{"PK": item["PK"], "SK": item["SK"]})
		}
	}
	return keys, nil
}
