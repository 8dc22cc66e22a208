package messaging

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/appointment-agent/internal/agent"
	"github.com/wolfman30/appointment-agent/internal/observability/metrics"
	"github.com/wolfman30/appointment-agent/pkg/logging"
)

var twilioTracer = otel.Tracer("booking.internal.messaging.twilio")

const (
	failureReply    = "Sorry, something went wrong on our side. Please try again in a moment."
	textOnlyReply   = "Please send your request as a text message."
	channelWhatsApp = "whatsapp"
)

// Responder answers one utterance for a session.
type Responder interface {
	Respond(ctx context.Context, sessionKey, utterance string) (agent.Reply, error)
}

// SessionClearer drops a session's history.
type SessionClearer interface {
	Clear(ctx context.Context, sessionKey string) error
}

// Handler serves the Twilio WhatsApp webhook. The sender's WhatsApp
// address is the session key.
type Handler struct {
	webhookSecret   string
	publicBaseURL   string
	responder       Responder
	sessions        SessionClearer
	clearOnTerminal bool
	timeout         time.Duration
	metrics         *metrics.AgentMetrics
	logger          *logging.Logger
}

type HandlerOption func(*Handler)

// WithPublicBaseURL fixes the scheme and host used for signature checks
// when the service sits behind a proxy that rewrites them.
func WithPublicBaseURL(base string) HandlerOption {
	return func(h *Handler) { h.publicBaseURL = base }
}

func WithRequestTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) { h.timeout = d }
}

func WithMetrics(m *metrics.AgentMetrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithClearOnTerminal controls whether finished bookings reset the session.
func WithClearOnTerminal(enabled bool) HandlerOption {
	return func(h *Handler) { h.clearOnTerminal = enabled }
}

func NewHandler(webhookSecret string, responder Responder, sessions SessionClearer, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if responder == nil {
		panic("messaging: responder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		webhookSecret:   webhookSecret,
		responder:       responder,
		sessions:        sessions,
		clearOnTerminal: true,
		timeout:         45 * time.Second,
		logger:          logger.Component("messaging.whatsapp"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WhatsAppWebhook handles POST /messaging/twilio/whatsapp.
func (h *Handler) WhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.whatsapp")
	defer span.End()

	if h.webhookSecret != "" {
		if !ValidateTwilioSignature(r, h.webhookSecret, h.webhookURL(r)) {
			h.logger.Warn("invalid twilio signature")
			h.metrics.ObserveInbound(channelWhatsApp, "unauthorized")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			span.RecordError(errors.New("invalid twilio signature"))
			return
		}
	}

	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse twilio webhook", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}
	span.SetAttributes(
		attribute.String("booking.twilio.message_sid", webhook.MessageSid),
		attribute.String("booking.twilio.from", webhook.From),
	)

	if webhook.From == "" {
		err := errors.New("missing sender address")
		h.logger.Error("invalid twilio payload", "error", err)
		h.metrics.ObserveInbound(channelWhatsApp, "invalid")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}
	if webhook.Body == "" {
		h.metrics.ObserveInbound(channelWhatsApp, "empty")
		writeTwiML(w, textOnlyReply)
		return
	}

	sessionKey := webhook.From
	log := h.logger.Session(sessionKey)

	respondCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	reply, err := h.responder.Respond(respondCtx, sessionKey, webhook.Body)
	if err != nil {
		log.Error("failed to answer whatsapp message", "error", err, "message_sid", webhook.MessageSid)
		h.metrics.ObserveInbound(channelWhatsApp, "error")
		span.RecordError(err)
		writeTwiML(w, failureReply)
		return
	}

	if reply.Terminal && h.clearOnTerminal && h.sessions != nil {
		if err := h.sessions.Clear(ctx, sessionKey); err != nil {
			log.Warn("failed to clear session after terminal reply", "error", err)
		}
	}

	h.metrics.ObserveInbound(channelWhatsApp, "answered")
	log.Info("whatsapp message answered", "operation", reply.Operation, "message_sid", webhook.MessageSid)
	writeTwiML(w, reply.Text)
}

func (h *Handler) webhookURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL + r.URL.RequestURI()
	}
	return buildAbsoluteURL(r)
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func writeTwiML(w http.ResponseWriter, text string) {
	body, err := xml.Marshal(twimlResponse{Message: text})
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
