package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// historyItem is one session transcript. ExpiresAt is the table's TTL
// attribute; DynamoDB removes expired items lazily, so Load checks it too.
type historyItem struct {
	SessionID string `dynamodbav:"sessionId"`
	History   string `dynamodbav:"history"`
	Turns     int    `dynamodbav:"turns"`
	UpdatedAt string `dynamodbav:"updatedAt"`
	ExpiresAt int64  `dynamodbav:"expiresAt"`
}

// DynamoHistoryStore keeps transcripts in a DynamoDB table keyed by sessionId.
type DynamoHistoryStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	tracer    trace.Tracer
	now       func() time.Time
}

var _ HistoryStore = (*DynamoHistoryStore)(nil)

func NewDynamoHistoryStore(client dynamoAPI, tableName string, ttl time.Duration, tracer trace.Tracer) *DynamoHistoryStore {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: table name cannot be empty")
	}
	if tracer == nil {
		tracer = otel.Tracer("gyntriage.internal.conversation.history")
	}
	if ttl <= 0 {
		ttl = defaultHistoryTTL
	}
	return &DynamoHistoryStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		tracer:    tracer,
		now:       time.Now,
	}
}

func (s *DynamoHistoryStore) Save(ctx context.Context, sessionID string, history []ChatMessage) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_history")
	defer span.End()

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	now := s.now().UTC()
	item, err := attributevalue.MarshalMap(historyItem{
		SessionID: sessionID,
		History:   string(data),
		Turns:     len(history),
		UpdatedAt: now.Format(time.RFC3339Nano),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history item: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

func (s *DynamoHistoryStore) Load(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            sessionKey(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load history: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item historyItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode history item: %w", err)
	}
	if item.ExpiresAt > 0 && item.ExpiresAt <= s.now().Unix() {
		return nil, nil
	}

	var history []ChatMessage
	if err := json.Unmarshal([]byte(item.History), &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	return history, nil
}

func (s *DynamoHistoryStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_history")
	defer span.End()

	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       sessionKey(sessionID),
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete history: %w", err)
	}
	return nil
}

func sessionKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"sessionId": &types.AttributeValueMemberS{Value: sessionID},
	}
}
