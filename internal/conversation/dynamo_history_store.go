package conversation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/wolfman30/appointment-agent/pkg/logging"
)

// Fixed width so sort keys order lexically by time.
const sortKeyLayout = "2006-01-02T15:04:05.000000000Z"

// DynamoDB caps BatchWriteItem at 25 requests.
const maxBatchWrite = 25

type dynamoHistoryAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(context.Context, *dynamodb.BatchWriteItemInput, ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

type historyItem struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	ID        string `dynamodbav:"id"`
	Role      string `dynamodbav:"role"`
	Content   string `dynamodbav:"content"`
	CreatedAt string `dynamodbav:"createdAt"`
	ExpiresAt int64  `dynamodbav:"expiresAt,omitempty"`
}

// DynamoHistoryStore keeps each message as an item under the session's
// partition key, ordered by the sort key.
type DynamoHistoryStore struct {
	client    dynamoHistoryAPI
	tableName string
	ttl       time.Duration
	logger    *logging.Logger
	now       func() time.Time
}

var _ HistoryStore = (*DynamoHistoryStore)(nil)

func NewDynamoHistoryStore(client dynamoHistoryAPI, tableName string, ttl time.Duration, logger *logging.Logger) *DynamoHistoryStore {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoHistoryStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		logger:    logger.Component("conversation.history"),
		now:       time.Now,
	}
}

// Load returns the session's unexpired messages in order. DynamoDB TTL
// deletion lags, so expiry is also enforced on read.
func (s *DynamoHistoryStore) Load(ctx context.Context, sessionKey string) ([]ChatMessage, error) {
	var (
		history []ChatMessage
		start   map[string]types.AttributeValue
	)
	now := s.now().Unix()
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("pk = :pk"),
			FilterExpression:       aws.String("attribute_not_exists(expiresAt) OR expiresAt > :now"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":  &types.AttributeValueMemberS{Value: sessionPartition(sessionKey)},
				":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
			},
			ScanIndexForward:  aws.Bool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("conversation: failed to load history: %w", err)
		}

		var items []historyItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
		}
		for _, item := range items {
			if item.ExpiresAt > 0 && item.ExpiresAt <= now {
				continue
			}
			created, _ := time.Parse(sortKeyLayout, item.CreatedAt)
			history = append(history, ChatMessage{
				ID:        item.ID,
				Role:      item.Role,
				Content:   item.Content,
				CreatedAt: created,
			})
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	return history, nil
}

func (s *DynamoHistoryStore) Append(ctx context.Context, sessionKey string, msgs ...ChatMessage) error {
	expires := s.now().Add(s.ttl).Unix()
	for i, msg := range msgs {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = s.now().UTC()
		}
		// Messages stamped in the same instant keep their append order.
		created := msg.CreatedAt.UTC().Add(time.Duration(i)).Format(sortKeyLayout)
		item, err := attributevalue.MarshalMap(historyItem{
			PK:        sessionPartition(sessionKey),
			SK:        fmt.Sprintf("MSG#%s#%s", created, msg.ID),
			ID:        msg.ID,
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: created,
			ExpiresAt: expires,
		})
		if err != nil {
			return fmt.Errorf("conversation: failed to marshal history: %w", err)
		}
		if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.tableName),
			Item:      item,
		}); err != nil {
			return fmt.Errorf("conversation: failed to persist history: %w", err)
		}
	}
	return nil
}

func (s *DynamoHistoryStore) Clear(ctx context.Context, sessionKey string) error {
	var (
		keys  []map[string]types.AttributeValue
		start map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: sessionPartition(sessionKey)},
			},
			ProjectionExpression: aws.String("pk, sk"),
			ExclusiveStartKey:    start,
		})
		if err != nil {
			return fmt.Errorf("conversation: failed to list history: %w", err)
		}
		keys = append(keys, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}

	for begin := 0; begin < len(keys); begin += maxBatchWrite {
		end := min(begin+maxBatchWrite, len(keys))
		requests := make([]types.WriteRequest, 0, end-begin)
		for _, key := range keys[begin:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
					"pk": key["pk"],
					"sk": key["sk"],
				}},
			})
		}
		pending := map[string][]types.WriteRequest{s.tableName: requests}
		for attempt := 0; len(pending) > 0 && attempt < 3; attempt++ {
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("conversation: failed to clear history: %w", err)
			}
			pending = out.UnprocessedItems
		}
		if len(pending) > 0 {
			s.logger.Warn("history clear left unprocessed items", "session_key", sessionKey, "remaining", len(pending[s.tableName]))
			return fmt.Errorf("conversation: failed to clear history: %d items unprocessed", len(pending[s.tableName]))
		}
	}
	return nil
}

func sessionPartition(sessionKey string) string {
	return "SESSION#" + sessionKey
}
