package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultHistoryTTL bounds how long an idle session keeps its history.
const DefaultHistoryTTL = 24 * time.Hour

// HistoryStore is the per-session conversation log. Loading an unknown
// session yields an empty history, not an error.
type HistoryStore interface {
	Load(ctx context.Context, sessionKey string) ([]ChatMessage, error)
	Append(ctx context.Context, sessionKey string, msgs ...ChatMessage) error
	Clear(ctx context.Context, sessionKey string) error
}

// UserMessage stamps a customer utterance for appending.
func UserMessage(text string) ChatMessage {
	return newMessage(ChatRoleUser, text)
}

// AssistantMessage stamps an assistant reply for appending.
func AssistantMessage(text string) ChatMessage {
	return newMessage(ChatRoleAssistant, text)
}

func newMessage(role, text string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}
}

// RedisHistoryStore keeps one Redis list per session.
type RedisHistoryStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

var _ HistoryStore = (*RedisHistoryStore)(nil)

func NewRedisHistoryStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisHistoryStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("booking.internal.conversation.history")
	}
	return &RedisHistoryStore{
		redis:  client,
		ttl:    ttl,
		tracer: tracer,
	}
}

func (s *RedisHistoryStore) Load(ctx context.Context, sessionKey string) ([]ChatMessage, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history",
		trace.WithAttributes(attribute.String("session_key", sessionKey)))
	defer span.End()

	raw, err := s.redis.LRange(ctx, conversationKey(sessionKey), 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load history: %w", err)
	}

	history := make([]ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
		}
		history = append(history, msg)
	}
	return history, nil
}

func (s *RedisHistoryStore) Append(ctx context.Context, sessionKey string, msgs ...ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "conversation.append_history",
		trace.WithAttributes(attribute.String("session_key", sessionKey), attribute.Int("messages", len(msgs))))
	defer span.End()

	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("conversation: failed to marshal history: %w", err)
		}
		values = append(values, data)
	}

	key := conversationKey(sessionKey)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

func (s *RedisHistoryStore) Clear(ctx context.Context, sessionKey string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.clear_history",
		trace.WithAttributes(attribute.String("session_key", sessionKey)))
	defer span.End()

	if err := s.redis.Del(ctx, conversationKey(sessionKey)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to clear history: %w", err)
	}
	return nil
}

func conversationKey(sessionKey string) string {
	return fmt.Sprintf("conversation:%s", strings.TrimSpace(sessionKey))
}
