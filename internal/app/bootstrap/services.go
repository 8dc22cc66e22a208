package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/appointment-agent/internal/agent"
	"github.com/wolfman30/appointment-agent/internal/appointments"
	appconfig "github.com/wolfman30/appointment-agent/internal/config"
	"github.com/wolfman30/appointment-agent/internal/conversation"
	"github.com/wolfman30/appointment-agent/internal/messaging"
	"github.com/wolfman30/appointment-agent/internal/notify"
	"github.com/wolfman30/appointment-agent/internal/observability/metrics"
	"github.com/wolfman30/appointment-agent/pkg/logging"
)

// Services is the dependency graph shared by the API server and the CLI.
type Services struct {
	Dispatcher *agent.Dispatcher
	History    conversation.HistoryStore
	Repository appointments.Repository
	Notifier   *notify.Notifier
	Metrics    *metrics.AgentMetrics

	redis *redis.Client
	pool  *pgxpool.Pool
}

// Build wires storage, the language model and the dispatcher from config.
// reg may be nil to use the default Prometheus registry.
func Build(ctx context.Context, cfg *appconfig.Config, reg prometheus.Registerer, logger *logging.Logger) (*Services, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	llm, err := BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Services{Metrics: metrics.NewAgentMetrics(reg)}
	if cfg.HistoryBackend == HistoryBackendRedis || cfg.HistoryBackend == "" {
		s.redis = BuildRedisClient(ctx, cfg, logger, true)
	}
	s.History, err = BuildHistoryStore(cfg, s.redis, awsCfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.pool, err = BuildPostgresPool(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Repository = BuildRepository(s.pool, logger)

	rewriterModel := strings.TrimSpace(cfg.RewriterModelID)
	if rewriterModel == "" {
		rewriterModel = cfg.BedrockModelID
	}
	rewriter := conversation.NewRewriter(llm, rewriterModel, int32(cfg.AgentMaxTokens), logger)
	gateway := appointments.NewGateway(
		s.Repository,
		appointments.NewFormatter(rewriter),
		rewriter,
		logger,
		appointments.WithMetrics(s.Metrics),
	)

	opts := []agent.Option{
		agent.WithModel(cfg.BedrockModelID, int32(cfg.AgentMaxTokens), float32(cfg.AgentTemperature)),
		agent.WithExplainer(rewriter),
		agent.WithMetrics(s.Metrics),
	}
	if s.redis != nil {
		opts = append(opts, agent.WithLocker(conversation.NewSessionLocker(s.redis, cfg.SessionLockTTL)))
	}
	s.Dispatcher = agent.NewDispatcher(llm, s.History, gateway, logger, opts...)

	var sender notify.Sender
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioWhatsAppFrom != "" {
		sender = messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom, logger)
	} else {
		logger.Warn("twilio not configured; customer notifications are only logged")
		sender = messaging.NewLogSender(logger)
	}
	s.Notifier = notify.NewNotifier(sender, s.History, cfg.PhoneCountryCode, s.Metrics, logger)

	return s, nil
}

// Ready pings the stores the process depends on.
func (s *Services) Ready(ctx context.Context) error {
	var errs []error
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close releases pooled connections.
func (s *Services) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
}
