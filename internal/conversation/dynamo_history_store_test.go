package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/appointment-agent/pkg/logging"
)

// fakeDynamo keeps items keyed by pk then sk and answers queries in sort
// key order, paging every pageSize items.
type fakeDynamo struct {
	items     map[string]map[string]map[string]types.AttributeValue
	pageSize  int
	batches   int
	putErr    error
	lastQuery *dynamodb.QueryInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]map[string]types.AttributeValue{}, pageSize: 2}
}

func attrString(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	pk, sk := attrString(in.Item, "pk"), attrString(in.Item, "sk")
	if f.items[pk] == nil {
		f.items[pk] = map[string]map[string]types.AttributeValue{}
	}
	f.items[pk][sk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQuery = in
	pk := attrString(in.ExpressionAttributeValues, ":pk")
	var sks []string
	for sk := range f.items[pk] {
		if !f.matchesExpiry(in, f.items[pk][sk]) {
			continue
		}
		sks = append(sks, sk)
	}
	sortStrings(sks)

	after := ""
	if in.ExclusiveStartKey != nil {
		after = attrString(in.ExclusiveStartKey, "sk")
	}
	out := &dynamodb.QueryOutput{}
	for _, sk := range sks {
		if after != "" && sk <= after {
			continue
		}
		if len(out.Items) == f.pageSize {
			last := out.Items[len(out.Items)-1]
			out.LastEvaluatedKey = map[string]types.AttributeValue{"pk": last["pk"], "sk": last["sk"]}
			break
		}
		out.Items = append(out.Items, f.items[pk][sk])
	}
	return out, nil
}

// matchesExpiry applies the "expiresAt > :now" filter when the query
// carries one.
func (f *fakeDynamo) matchesExpiry(in *dynamodb.QueryInput, item map[string]types.AttributeValue) bool {
	now, ok := in.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN)
	if !ok {
		return true
	}
	expires, ok := item["expiresAt"].(*types.AttributeValueMemberN)
	if !ok {
		return true
	}
	e, _ := strconv.ParseInt(expires.Value, 10, 64)
	n, _ := strconv.ParseInt(now.Value, 10, 64)
	return e > n
}

func (f *fakeDynamo) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.batches++
	for _, requests := range in.RequestItems {
		if len(requests) > maxBatchWrite {
			return nil, errors.New("too many items in batch")
		}
		for _, req := range requests {
			pk, sk := attrString(req.DeleteRequest.Key, "pk"), attrString(req.DeleteRequest.Key, "sk")
			delete(f.items[pk], sk)
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func TestDynamoHistoryStore_AppendAndLoadInOrder(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoHistoryStore(fake, "appointment_conversations", time.Hour, logging.Default())
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "01308457363",
		UserMessage("first"),
		AssistantMessage("second"),
		UserMessage("third"),
	))

	history, err := store.Load(ctx, "01308457363")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{history[0].Content, history[1].Content, history[2].Content})
	assert.Equal(t, ChatRoleAssistant, history[1].Role)

	for sk, item := range fake.items["SESSION#01308457363"] {
		assert.True(t, strings.HasPrefix(sk, "MSG#"))
		var stored historyItem
		require.NoError(t, attributevalue.UnmarshalMap(item, &stored))
		assert.Greater(t, stored.ExpiresAt, time.Now().Unix())
	}
}

func TestDynamoHistoryStore_LoadSkipsExpiredMessages(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoHistoryStore(fake, "appointment_conversations", time.Hour, nil)
	ctx := context.Background()

	past := time.Now().Add(-3 * time.Hour)
	store.now = func() time.Time { return past }
	require.NoError(t, store.Append(ctx, "whatsapp:+8801712345678", UserMessage("stale")))

	store.now = time.Now
	require.NoError(t, store.Append(ctx, "whatsapp:+8801712345678", UserMessage("fresh")))

	history, err := store.Load(ctx, "whatsapp:+8801712345678")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "fresh", history[0].Content)
	require.NotNil(t, fake.lastQuery.FilterExpression)
	assert.Contains(t, *fake.lastQuery.FilterExpression, "expiresAt > :now")
}

func TestDynamoHistoryStore_ClearBatchesDeletes(t *testing.T) {
	fake := newFakeDynamo()
	fake.pageSize = 10
	store := NewDynamoHistoryStore(fake, "appointment_conversations", 0, nil)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		require.NoError(t, store.Append(ctx, "s1", UserMessage(fmt.Sprintf("msg %d", i))))
	}
	require.NoError(t, store.Append(ctx, "s2", UserMessage("keep")))

	require.NoError(t, store.Clear(ctx, "s1"))
	assert.Equal(t, 2, fake.batches)
	assert.Empty(t, fake.items["SESSION#s1"])

	history, err := store.Load(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDynamoHistoryStore_AppendError(t *testing.T) {
	fake := newFakeDynamo()
	fake.putErr = errors.New("throttled")
	store := NewDynamoHistoryStore(fake, "appointment_conversations", 0, nil)

	err := store.Append(context.Background(), "s1", UserMessage("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
