package webchat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/appointment-agent/internal/agent"
	"github.com/wolfman30/appointment-agent/internal/conversation"
	"github.com/wolfman30/appointment-agent/internal/observability/metrics"
	"github.com/wolfman30/appointment-agent/pkg/logging"
)

const (
	channelWeb   = "webchat"
	failureReply = "Sorry, something went wrong on our side. Please try again in a moment."
	maxBodyBytes = 16 << 10
)

// Responder answers one utterance for a session.
type Responder interface {
	Respond(ctx context.Context, sessionKey, utterance string) (agent.Reply, error)
}

// Sessions reads and clears chat history.
type Sessions interface {
	Load(ctx context.Context, sessionKey string) ([]conversation.ChatMessage, error)
	Clear(ctx context.Context, sessionKey string) error
}

// Handler serves the web chat over plain HTTP and WebSocket.
type Handler struct {
	responder       Responder
	sessions        Sessions
	defaultKey      string
	clearOnTerminal bool
	timeout         time.Duration
	metrics         *metrics.AgentMetrics
	logger          *logging.Logger
}

// Config tunes a Handler.
type Config struct {
	// DefaultSessionKey is used when a client sends no session id.
	DefaultSessionKey string
	ClearOnTerminal   bool
	RequestTimeout    time.Duration
	Metrics           *metrics.AgentMetrics
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse is returned by POST /chat.
type ChatResponse struct {
	Reply     string `json:"reply"`
	Operation string `json:"operation,omitempty"`
	Terminal  bool   `json:"terminal"`
}

// InboundMessage is what the widget sends over the socket.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "history", "session", "error", "pong"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	Operation string           `json:"operation,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified message for history responses.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NewHandler creates a web chat handler.
func NewHandler(responder Responder, sessions Sessions, cfg Config, logger *logging.Logger) *Handler {
	if responder == nil {
		panic("webchat: responder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.DefaultSessionKey == "" {
		cfg.DefaultSessionKey = "webchat:default"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 45 * time.Second
	}
	return &Handler{
		responder:       responder,
		sessions:        sessions,
		defaultKey:      cfg.DefaultSessionKey,
		clearOnTerminal: cfg.ClearOnTerminal,
		timeout:         cfg.RequestTimeout,
		metrics:         cfg.Metrics,
		logger:          logger.Component("webchat"),
	}
}

// SessionKey maps a client session id to a conversation session key.
func (h *Handler) SessionKey(sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return h.defaultKey
	}
	return "webchat:" + sessionID
}

// HandleChat serves POST /chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.metrics.ObserveInbound(channelWeb, "invalid")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.metrics.ObserveInbound(channelWeb, "invalid")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	reply, err := h.answer(r.Context(), h.SessionKey(req.SessionID), req.Message)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": failureReply})
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		Reply:     reply.Text,
		Operation: reply.Operation,
		Terminal:  reply.Terminal,
	})
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	sessionKey := h.SessionKey(sessionID)
	log := h.logger.Session(sessionKey)

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})

	if h.sessions != nil {
		if turns, err := h.sessions.Load(r.Context(), sessionKey); err == nil && len(turns) > 0 {
			history := make([]HistoryMessage, 0, len(turns))
			for _, m := range turns {
				msg := HistoryMessage{Role: m.Role, Text: m.Content}
				if !m.CreatedAt.IsZero() {
					msg.Timestamp = m.CreatedAt.Format(time.RFC3339)
				}
				history = append(history, msg)
			}
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: history})
		}
	}

	log.Info("webchat: connection opened")
	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			log.Debug("webchat: connection closed", "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		reply, err := h.answer(r.Context(), sessionKey, msg.Text)
		if err != nil {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: failureReply})
			continue
		}
		if err := websocket.JSON.Send(conn, OutboundMessage{
			Type:      "message",
			Role:      conversation.ChatRoleAssistant,
			Text:      reply.Text,
			Operation: reply.Operation,
		}); err != nil {
			log.Debug("webchat: send failed", "error", err)
			return
		}
	}
}

func (h *Handler) answer(ctx context.Context, sessionKey, text string) (agent.Reply, error) {
	log := h.logger.Session(sessionKey)
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	reply, err := h.responder.Respond(ctx, sessionKey, text)
	if err != nil {
		h.metrics.ObserveInbound(channelWeb, "error")
		log.Error("webchat: failed to answer", "error", err)
		return agent.Reply{}, err
	}
	if reply.Terminal && h.clearOnTerminal && h.sessions != nil {
		if err := h.sessions.Clear(ctx, sessionKey); err != nil {
			log.Warn("webchat: failed to clear session after terminal reply", "error", err)
		}
	}
	h.metrics.ObserveInbound(channelWeb, "answered")
	return reply, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
