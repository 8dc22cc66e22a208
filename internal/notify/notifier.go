package notify

import (
	"context"
	"fmt"

	"github.com/wolfman30/appointment-agent/internal/appointments"
	"github.com/wolfman30/appointment-agent/internal/conversation"
	"github.com/wolfman30/appointment-agent/internal/messaging/templates"
	"github.com/wolfman30/appointment-agent/internal/observability/metrics"
	"github.com/wolfman30/appointment-agent/internal/validate"
	"github.com/wolfman30/appointment-agent/pkg/logging"
)

// Template names.
const (
	TemplateUpdated   = "updated"
	TemplateApproved  = "approved"
	TemplateCompleted = "completed"
	TemplateRejected  = "rejected"
)

var messageTemplates = map[string]string{
	TemplateUpdated: "Hello {{.Name}}, your appointment {{.ID}} has been updated by our staff. " +
		"It is now on {{.Date}} at {{.Time}} and its status is {{.Status}}.",
	TemplateApproved: "Hello {{.Name}}, your appointment {{.ID}} on {{.Date}} at {{.Time}} has been approved. " +
		"Please arrive a few minutes early.",
	TemplateCompleted: "Hello {{.Name}}, your appointment {{.ID}} is complete. Thank you for visiting us.",
	TemplateRejected: "Hello {{.Name}}, we are sorry but your appointment request {{.ID}} for {{.Date}} at {{.Time}} " +
		"could not be accepted. You are welcome to book another time.",
}

// Sender delivers a message to a customer's transport address.
type Sender interface {
	SendWhatsApp(ctx context.Context, to, body string) error
}

type messageData struct {
	ID     string
	Name   string
	Date   string
	Time   string
	Status string
}

// Notifier tells customers about staff changes to their appointments and
// keeps their chat session consistent with what was sent.
type Notifier struct {
	sender      Sender
	history     conversation.HistoryStore
	renderer    *templates.Renderer
	countryCode string
	metrics     *metrics.AgentMetrics
	logger      *logging.Logger
}

func NewNotifier(sender Sender, history conversation.HistoryStore, countryCode string, m *metrics.AgentMetrics, logger *logging.Logger) *Notifier {
	if sender == nil {
		panic("notify: sender cannot be nil")
	}
	if history == nil {
		panic("notify: history store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	renderer, err := templates.New(messageTemplates)
	if err != nil {
		panic(err)
	}
	return &Notifier{
		sender:      sender,
		history:     history,
		renderer:    renderer,
		countryCode: countryCode,
		metrics:     m,
		logger:      logger.Component("notify"),
	}
}

// TemplateFor picks the message for a change from previous to appt.Status.
// Field edits without a status change, and moves back to Pending, use the
// updated template.
func TemplateFor(appt appointments.Appointment, previous appointments.Status) string {
	if appt.Status == previous {
		return TemplateUpdated
	}
	switch appt.Status {
	case appointments.StatusApproved:
		return TemplateApproved
	case appointments.StatusComplete:
		return TemplateCompleted
	case appointments.StatusRejected:
		return TemplateRejected
	default:
		return TemplateUpdated
	}
}

// NotifyStatusChange sends the templated message, then appends it to the
// customer's session or clears the session when the booking is finished.
func (n *Notifier) NotifyStatusChange(ctx context.Context, appt appointments.Appointment, previous appointments.Status) error {
	name := TemplateFor(appt, previous)
	body, err := n.renderer.Render(name, messageData{
		ID:     appt.ID.String(),
		Name:   appt.PersonName,
		Date:   appt.Date.Format(validate.DayFirstLayout),
		Time:   appt.StartTime.Short(),
		Status: string(appt.Status),
	})
	if err != nil {
		return fmt.Errorf("notify: render %s: %w", name, err)
	}

	to := n.SessionKey(appt)
	if err := n.sender.SendWhatsApp(ctx, to, body); err != nil {
		n.metrics.ObserveNotification(name, false)
		n.logger.Error("notification send failed", "template", name, "record_id", appt.ID, "error", err)
		return fmt.Errorf("notify: send %s: %w", name, err)
	}
	n.metrics.ObserveNotification(name, true)
	n.logger.Info("notification sent", "template", name, "record_id", appt.ID)

	switch name {
	case TemplateCompleted, TemplateRejected:
		if err := n.history.Clear(ctx, to); err != nil {
			return fmt.Errorf("notify: clear session: %w", err)
		}
	default:
		if err := n.history.Append(ctx, to, conversation.AssistantMessage(body)); err != nil {
			return fmt.Errorf("notify: append session: %w", err)
		}
	}
	return nil
}

// Forget clears the customer's session without messaging them.
func (n *Notifier) Forget(ctx context.Context, appt appointments.Appointment) error {
	if err := n.history.Clear(ctx, n.SessionKey(appt)); err != nil {
		return fmt.Errorf("notify: clear session: %w", err)
	}
	return nil
}

// SessionKey is the customer's WhatsApp address, which is also the session
// key the WhatsApp channel uses.
func (n *Notifier) SessionKey(appt appointments.Appointment) string {
	return appointments.TransportAddress(n.countryCode, appt.PhoneNumber)
}
