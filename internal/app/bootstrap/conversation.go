package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/appointment-agent/internal/config"
	"github.com/wolfman30/appointment-agent/internal/conversation"
	"github.com/wolfman30/appointment-agent/pkg/logging"
)

const (
	HistoryBackendRedis  = "redis"
	HistoryBackendDynamo = "dynamodb"
	HistoryBackendMemory = "memory"
)

// ErrNoLanguageModel is returned when neither Bedrock nor Gemini is configured.
var ErrNoLanguageModel = errors.New("bootstrap: no language model configured (set BEDROCK_MODEL_ID or GEMINI_API_KEY)")

// BuildLLMClient wires Bedrock as the primary model with Gemini as the
// fallback. Either one alone is enough.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (conversation.LLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}

	var primary, fallback conversation.LLMClient
	if strings.TrimSpace(cfg.BedrockModelID) != "" {
		primary = conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			if primary == nil {
				return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
			}
			logger.Warn("gemini fallback disabled", "error", err)
		} else {
			fallback = gemini
		}
	}

	switch {
	case primary != nil && fallback != nil:
		logger.Info("language model configured", "primary", "bedrock", "model", cfg.BedrockModelID, "fallback", "gemini")
		return conversation.NewFallbackLLMClient(primary, fallback, logger), nil
	case primary != nil:
		logger.Info("language model configured", "primary", "bedrock", "model", cfg.BedrockModelID)
		return primary, nil
	case fallback != nil:
		logger.Info("language model configured", "primary", "gemini", "model", cfg.GeminiModelID)
		return fallback, nil
	default:
		return nil, ErrNoLanguageModel
	}
}

// BuildHistoryStore selects the conversation store named by HISTORY_BACKEND.
func BuildHistoryStore(cfg *appconfig.Config, redisClient *redis.Client, awsCfg aws.Config, logger *logging.Logger) (conversation.HistoryStore, error) {
	switch cfg.HistoryBackend {
	case HistoryBackendRedis, "":
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: history backend %q needs a reachable REDIS_ADDR", HistoryBackendRedis)
		}
		return conversation.NewRedisHistoryStore(redisClient, cfg.HistoryTTL, nil), nil
	case HistoryBackendDynamo:
		return conversation.NewDynamoHistoryStore(NewDynamoClient(awsCfg, cfg), cfg.HistoryTable, cfg.HistoryTTL, logger), nil
	case HistoryBackendMemory:
		logger.Warn("conversation history is kept in memory and lost on restart")
		return conversation.NewMemoryHistoryStore(), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown history backend %q", cfg.HistoryBackend)
	}
}
