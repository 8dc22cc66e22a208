package messaging

import (
	"context"

	"github.com/wolfman30/appointment-agent/pkg/logging"
)

// LogSender stands in for Twilio in local runs. Messages are logged, not sent.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	return &LogSender{logger: logger.Component("messaging.log_sender")}
}

func (s *LogSender) SendWhatsApp(ctx context.Context, to, body string) error {
	s.logger.Info("whatsapp message not sent (twilio disabled)", "to", to, "body", body)
	return nil
}
