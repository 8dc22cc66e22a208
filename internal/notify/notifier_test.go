package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/appointment-agent/internal/agent"
	"github.com/wolfman30/appointment-agent/internal/appointments"
	"github.com/wolfman30/appointment-agent/internal/conversation"
	"github.com/wolfman30/appointment-agent/internal/messaging"
	"github.com/wolfman30/appointment-agent/internal/validate"
)

type sentMessage struct{ to, body string }

type stubSender struct {
	sent []sentMessage
	err  error
}

func (s *stubSender) SendWhatsApp(ctx context.Context, to, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{to: to, body: body})
	return nil
}

func booking(status appointments.Status) appointments.Appointment {
	age := 30
	return appointments.Appointment{
		ID:          "SC_01712345678_10_02_00",
		PhoneNumber: "01712345678",
		PersonName:  "Karim",
		Age:         &age,
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:   validate.Clock{Hour: 14},
		EndTime:     validate.Clock{Hour: 14, Minute: 5},
		Status:      status,
	}
}

const session = "whatsapp:+8801712345678"

func TestTemplateFor(t *testing.T) {
	cases := []struct {
		previous, current appointments.Status
		want              string
	}{
		{appointments.StatusPending, appointments.StatusPending, TemplateUpdated},
		{appointments.StatusPending, appointments.StatusApproved, TemplateApproved},
		{appointments.StatusApproved, appointments.StatusComplete, TemplateCompleted},
		{appointments.StatusPending, appointments.StatusRejected, TemplateRejected},
		{appointments.StatusApproved, appointments.StatusPending, TemplateUpdated},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TemplateFor(booking(tc.current), tc.previous), "%s -> %s", tc.previous, tc.current)
	}
}

func TestNotifyStatusChange_ApprovedAppendsToSession(t *testing.T) {
	sender := &stubSender{}
	history := conversation.NewMemoryHistoryStore()
	n := NewNotifier(sender, history, "880", nil, nil)
	ctx := context.Background()

	require.NoError(t, n.NotifyStatusChange(ctx, booking(appointments.StatusApproved), appointments.StatusPending))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, session, sender.sent[0].to)
	assert.Equal(t, "Hello Karim, your appointment SC_01712345678_10_02_00 on 10-03-2025 at 14:00 has been approved. "+
		"Please arrive a few minutes early.", sender.sent[0].body)

	turns, _ := history.Load(ctx, session)
	require.Len(t, turns, 1)
	assert.Equal(t, conversation.ChatRoleAssistant, turns[0].Role)
	assert.Equal(t, sender.sent[0].body, turns[0].Content)
}

func TestNotifyStatusChange_TerminalClearsSession(t *testing.T) {
	for _, status := range []appointments.Status{appointments.StatusComplete, appointments.StatusRejected} {
		sender := &stubSender{}
		history := conversation.NewMemoryHistoryStore()
		ctx := context.Background()
		require.NoError(t, history.Append(ctx, session, conversation.UserMessage("is it approved?")))

		n := NewNotifier(sender, history, "880", nil, nil)
		require.NoError(t, n.NotifyStatusChange(ctx, booking(status), appointments.StatusApproved))

		assert.Len(t, sender.sent, 1)
		turns, _ := history.Load(ctx, session)
		assert.Empty(t, turns, "status %s", status)
	}
}

func TestNotifyStatusChange_SendFailureLeavesSession(t *testing.T) {
	sender := &stubSender{err: errors.New("twilio down")}
	history := conversation.NewMemoryHistoryStore()
	ctx := context.Background()
	require.NoError(t, history.Append(ctx, session, conversation.UserMessage("hi")))

	n := NewNotifier(sender, history, "880", nil, nil)
	err := n.NotifyStatusChange(ctx, booking(appointments.StatusComplete), appointments.StatusApproved)
	require.Error(t, err)

	turns, _ := history.Load(ctx, session)
	assert.Len(t, turns, 1)
}

func TestForget(t *testing.T) {
	sender := &stubSender{}
	history := conversation.NewMemoryHistoryStore()
	ctx := context.Background()
	require.NoError(t, history.Append(ctx, session, conversation.UserMessage("hi")))

	n := NewNotifier(sender, history, "+880", nil, nil)
	require.NoError(t, n.Forget(ctx, booking(appointments.StatusPending)))

	turns, _ := history.Load(ctx, session)
	assert.Empty(t, turns)
	assert.Empty(t, sender.sent)
}

func TestSessionKeyMatchesInboundSender(t *testing.T) {
	n := NewNotifier(&stubSender{}, conversation.NewMemoryHistoryStore(), "880", nil, nil)
	appt := booking(appointments.StatusApproved)

	for _, from := range []string{"whatsapp:+8801712345678", "+880 1712-345678"} {
		assert.Equal(t, messaging.NormalizeWhatsAppAddress(from), n.SessionKey(appt), from)
	}
}

type recordingConverse struct {
	inputs []*bedrockruntime.ConverseInput
}

func (r *recordingConverse) Converse(ctx context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	r.inputs = append(r.inputs, in)
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "Which time would you prefer?"}},
		}},
	}, nil
}

func TestNotifiedSessionKeepsConversing(t *testing.T) {
	ctx := context.Background()
	history := conversation.NewMemoryHistoryStore()
	n := NewNotifier(&stubSender{}, history, "880", nil, nil)
	require.NoError(t, n.NotifyStatusChange(ctx, booking(appointments.StatusApproved), appointments.StatusPending))

	converse := &recordingConverse{}
	gw := appointments.NewGateway(appointments.NewInMemoryRepository(), nil, nil, nil)
	dispatcher := agent.NewDispatcher(conversation.NewBedrockLLMClient(converse), history, gw, nil,
		agent.WithModel("test-model", 256, 0))

	inbound := messaging.NormalizeWhatsAppAddress("whatsapp:+8801712345678")
	reply, err := dispatcher.Respond(ctx, inbound, "Can I move it to 3pm?")
	require.NoError(t, err)
	assert.Equal(t, "Which time would you prefer?", reply.Text)

	require.Len(t, converse.inputs, 1)
	sent := converse.inputs[0]
	require.NotEmpty(t, sent.Messages)
	assert.Equal(t, brtypes.ConversationRoleUser, sent.Messages[0].Role)

	turns, err := history.Load(ctx, inbound)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, conversation.ChatRoleAssistant, turns[0].Role)
	assert.Equal(t, "Can I move it to 3pm?", turns[1].Content)
}
