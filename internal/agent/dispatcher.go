package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/appointment-agent/internal/appointments"
	"github.com/wolfman30/appointment-agent/internal/conversation"
	"github.com/wolfman30/appointment-agent/internal/observability/metrics"
	"github.com/wolfman30/appointment-agent/internal/validate"
	"github.com/wolfman30/appointment-agent/pkg/logging"
)

const fallbackReply = "Sorry, I did not understand that. Could you say it another way?"

const systemPrompt = `You are the booking assistant of a clinic. You help customers book, look up,
change and cancel appointments.
Today is %s.
- To book you need the phone number, the person's name, the date and the start time. Age is optional.
- Looking up, changing or cancelling a booking needs the user id given when it was booked.
- Ask for anything that is missing before calling a tool. Never invent values.
- Pass dates as YYYY-MM-DD and times as 24 hour HH:MM:SS.
- Call at most one tool per message. Otherwise reply briefly in plain text.`

// Bookings executes validated commands. *appointments.Gateway implements it.
type Bookings interface {
	Insert(ctx context.Context, req appointments.NewAppointment) appointments.Outcome
	Search(ctx context.Context, id validate.RecordID) appointments.Outcome
	Update(ctx context.Context, id validate.RecordID, patch appointments.Patch) appointments.Outcome
	Delete(ctx context.Context, id validate.RecordID) appointments.Outcome
}

// Locker serializes requests that share a session key.
type Locker interface {
	Lock(ctx context.Context, sessionKey string) (func(), error)
}

// Reply is the text for the customer plus what produced it.
type Reply struct {
	Text      string
	Operation string
	// Terminal marks a created, updated or cancelled booking. Channels clear
	// the session when it is set.
	Terminal bool
}

// Dispatcher answers one utterance at a time. It holds no per-request
// state; history lives in the HistoryStore.
type Dispatcher struct {
	llm         conversation.LLMClient
	history     conversation.HistoryStore
	bookings    Bookings
	explainer   appointments.Explainer
	locker      Locker
	metrics     *metrics.AgentMetrics
	logger      *logging.Logger
	tracer      trace.Tracer
	model       string
	maxTokens   int32
	temperature float32
	now         func() time.Time
}

type Option func(*Dispatcher)

func WithModel(model string, maxTokens int32, temperature float32) Option {
	return func(d *Dispatcher) {
		d.model = model
		d.maxTokens = maxTokens
		d.temperature = temperature
	}
}

// WithExplainer paraphrases phone validation failures.
func WithExplainer(e appointments.Explainer) Option {
	return func(d *Dispatcher) { d.explainer = e }
}

func WithLocker(l Locker) Option {
	return func(d *Dispatcher) { d.locker = l }
}

func WithMetrics(m *metrics.AgentMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(llm conversation.LLMClient, history conversation.HistoryStore, bookings Bookings, logger *logging.Logger, opts ...Option) *Dispatcher {
	if llm == nil {
		panic("agent: llm client cannot be nil")
	}
	if history == nil {
		panic("agent: history store cannot be nil")
	}
	if bookings == nil {
		panic("agent: bookings cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		llm:         llm,
		history:     history,
		bookings:    bookings,
		logger:      logger.Component("agent"),
		tracer:      otel.Tracer("booking.internal.agent"),
		maxTokens:   512,
		temperature: 0,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Respond runs one utterance through model selection, validation and
// execution, then appends the exchange to the session history. Model and
// history load failures are returned as errors; everything else becomes
// reply text.
func (d *Dispatcher) Respond(ctx context.Context, sessionKey, utterance string) (Reply, error) {
	ctx, span := d.tracer.Start(ctx, "agent.respond", trace.WithAttributes(attribute.String("session_key", sessionKey)))
	defer span.End()
	started := time.Now()
	log := d.logger.Session(sessionKey)

	if d.locker != nil {
		unlock, err := d.locker.Lock(ctx, sessionKey)
		if err != nil {
			span.RecordError(err)
			return Reply{}, fmt.Errorf("agent: lock session: %w", err)
		}
		defer unlock()
	}

	history, err := d.history.Load(ctx, sessionKey)
	if err != nil {
		span.RecordError(err)
		return Reply{}, fmt.Errorf("agent: load history: %w", err)
	}

	messages := make([]conversation.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, conversation.ChatMessage{Role: conversation.ChatRoleUser, Content: utterance})

	resp, err := d.llm.Complete(ctx, conversation.LLMRequest{
		Model:       d.model,
		System:      []string{fmt.Sprintf(systemPrompt, d.now().Format("Monday, 2006-01-02"))},
		Messages:    messages,
		Tools:       Catalog(),
		MaxTokens:   d.maxTokens,
		Temperature: d.temperature,
	})
	if err != nil {
		d.metrics.ObserveModelFailure()
		span.RecordError(err)
		return Reply{}, fmt.Errorf("agent: select operation: %w", err)
	}

	cmd, err := Decode(resp)
	var reply Reply
	switch {
	case err == nil:
		reply = d.execute(ctx, cmd)
	case errors.Is(err, ErrUnknownOperation):
		d.metrics.ObserveModelFailure()
		span.RecordError(err)
		return Reply{}, err
	default:
		reply = d.reject(ctx, resp.ToolCall.Name, err)
	}
	span.SetAttributes(attribute.String("agent.operation", reply.Operation))

	if err := d.history.Append(ctx, sessionKey,
		conversation.UserMessage(utterance),
		conversation.AssistantMessage(reply.Text),
	); err != nil {
		span.RecordError(err)
		log.Warn("failed to append history", "error", err)
	}

	d.metrics.ObserveRequest(operationLabel(reply.Operation), time.Since(started).Seconds())
	log.Info("utterance handled", "operation", operationLabel(reply.Operation), "terminal", reply.Terminal)
	return reply, nil
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command) Reply {
	var out appointments.Outcome
	switch c := cmd.(type) {
	case InsertCommand:
		out = d.bookings.Insert(ctx, c.Request)
	case SearchCommand:
		out = d.bookings.Search(ctx, c.ID)
	case UpdateCommand:
		out = d.bookings.Update(ctx, c.ID, c.Patch)
	case DeleteCommand:
		out = d.bookings.Delete(ctx, c.ID)
	case NoCommand:
		text := strings.TrimSpace(c.Text)
		if text == "" {
			text = fallbackReply
		}
		return Reply{Text: text}
	default:
		panic(fmt.Sprintf("agent: unhandled command %T", cmd))
	}
	return Reply{Text: out.Text, Operation: cmd.Operation(), Terminal: out.Terminal}
}

// reject renders validation failures. A bad record id is reported alone
// and verbatim.
func (d *Dispatcher) reject(ctx context.Context, op string, err error) Reply {
	d.metrics.ObserveOperation(op, "invalid")
	if errors.Is(err, validate.ErrInvalidRecordID) {
		return Reply{Text: validate.ErrInvalidRecordID.Error(), Operation: op}
	}

	var rej *Rejection
	if !errors.As(err, &rej) {
		return Reply{Text: err.Error(), Operation: op}
	}
	msgs := make([]string, 0, len(rej.Errors))
	for _, verr := range rej.Errors {
		msg := verr.Message
		if verr.Field == "phone_number" && d.explainer != nil {
			msg = d.explainer.Explain(ctx, msg)
		}
		msgs = append(msgs, msg)
	}
	return Reply{Text: strings.Join(msgs, "\n"), Operation: op}
}

func operationLabel(op string) string {
	if op == "" {
		return "none"
	}
	return op
}
