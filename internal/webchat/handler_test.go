package webchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/appointment-agent/internal/agent"
	"github.com/wolfman30/appointment-agent/internal/conversation"
)

type stubResponder struct {
	reply agent.Reply
	err   error
	keys  []string
}

func (s *stubResponder) Respond(ctx context.Context, sessionKey, utterance string) (agent.Reply, error) {
	s.keys = append(s.keys, sessionKey)
	return s.reply, s.err
}

func postChat(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)
	return rec
}

func TestHandleChat_UsesDefaultSession(t *testing.T) {
	responder := &stubResponder{reply: agent.Reply{Text: "What is your phone number?"}}
	h := NewHandler(responder, conversation.NewMemoryHistoryStore(), Config{}, nil)

	rec := postChat(t, h, `{"message":"I want to book"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "What is your phone number?", resp.Reply)
	assert.False(t, resp.Terminal)
	assert.Equal(t, []string{"webchat:default"}, responder.keys)

	postChat(t, h, `{"session_id":"abc","message":"hi"}`)
	assert.Equal(t, "webchat:abc", responder.keys[1])
}

func TestHandleChat_TerminalClearsSession(t *testing.T) {
	history := conversation.NewMemoryHistoryStore()
	ctx := context.Background()
	require.NoError(t, history.Append(ctx, "webchat:abc", conversation.UserMessage("cancel it")))

	responder := &stubResponder{reply: agent.Reply{Text: "Appointment canceled.", Operation: "delete_data", Terminal: true}}
	h := NewHandler(responder, history, Config{ClearOnTerminal: true}, nil)

	rec := postChat(t, h, `{"session_id":"abc","message":"cancel SC_01712345678_10_02_00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"operation":"delete_data"`)

	turns, _ := history.Load(ctx, "webchat:abc")
	assert.Empty(t, turns)
}

func TestHandleChat_BadRequests(t *testing.T) {
	h := NewHandler(&stubResponder{}, nil, Config{}, nil)

	assert.Equal(t, http.StatusBadRequest, postChat(t, h, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, postChat(t, h, `{"message":"  "}`).Code)
}

func TestHandleChat_ModelFailure(t *testing.T) {
	h := NewHandler(&stubResponder{err: errors.New("model unavailable")}, nil, Config{}, nil)

	rec := postChat(t, h, `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "model unavailable")
}

func TestHandleWebSocket_ExchangesMessages(t *testing.T) {
	history := conversation.NewMemoryHistoryStore()
	require.NoError(t, history.Append(context.Background(), "webchat:s1",
		conversation.UserMessage("hello"),
		conversation.AssistantMessage("Hi! How can I help?"),
	))
	responder := &stubResponder{reply: agent.Reply{Text: "Your appointment is booked.", Operation: "insert_data"}}
	h := NewHandler(responder, history, Config{}, nil)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws?session=s1"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	var msg OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	assert.Equal(t, "session", msg.Type)
	assert.Equal(t, "s1", msg.SessionID)

	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	assert.Equal(t, "history", msg.Type)
	require.Len(t, msg.Messages, 2)
	assert.Equal(t, "Hi! How can I help?", msg.Messages[1].Text)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	var pong OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &pong))
	assert.Equal(t, "pong", pong.Type)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "book me"}))
	var reply OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &reply))
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "Your appointment is booked.", reply.Text)
	assert.Equal(t, "insert_data", reply.Operation)
	assert.Equal(t, []string{"webchat:s1"}, responder.keys)
}
