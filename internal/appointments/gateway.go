package appointments

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/appointment-agent/internal/observability/metrics"
	"github.com/wolfman30/appointment-agent/internal/validate"
	"github.com/wolfman30/appointment-agent/pkg/logging"
)

// Operation names, shared with the tool catalog.
const (
	OpInsert = "insert_data"
	OpSearch = "search_data"
	OpUpdate = "update_data"
	OpDelete = "delete_data"
)

// Explainer turns a raw fault into text a customer can read. Like
// Rephraser it never fails; it returns the input when it cannot help.
type Explainer interface {
	Explain(ctx context.Context, fault string) string
}

// Outcome is the user-facing result of one gateway operation.
type Outcome struct {
	Text string
	// Terminal is set when the booking reached a final state for this
	// conversation: created, updated or cancelled.
	Terminal bool
	ID       validate.RecordID
}

// Gateway executes booking operations and always answers with text. Store
// faults are explained, never returned.
type Gateway struct {
	repo      Repository
	formatter *Formatter
	explainer Explainer
	metrics   *metrics.AgentMetrics
	logger    *logging.Logger
	tracer    trace.Tracer
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithMetrics records operation outcomes.
func WithMetrics(m *metrics.AgentMetrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) GatewayOption {
	return func(g *Gateway) { g.tracer = t }
}

// NewGateway wires the gateway.
func NewGateway(repo Repository, formatter *Formatter, explainer Explainer, logger *logging.Logger, opts ...GatewayOption) *Gateway {
	if repo == nil {
		panic("appointments: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if formatter == nil {
		formatter = NewFormatter(nil)
	}
	g := &Gateway{
		repo:      repo,
		formatter: formatter,
		explainer: explainer,
		logger:    logger.Component("appointments.gateway"),
		tracer:    otel.Tracer("booking.internal.appointments"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Insert books a slot once. Repeating an identical request, or losing a
// race to an identical concurrent request, reports the existing id.
func (g *Gateway) Insert(ctx context.Context, req NewAppointment) Outcome {
	ctx, span := g.tracer.Start(ctx, "appointments.insert")
	defer span.End()

	appt := req.Build()
	span.SetAttributes(attribute.String("booking.record_id", appt.ID.String()))

	existing, err := g.repo.FindExact(ctx, appt)
	switch {
	case err == nil:
		g.observe(OpInsert, "duplicate")
		return alreadyBooked(existing.ID)
	case !errors.Is(err, ErrNotFound):
		span.RecordError(err)
		return g.fault(ctx, OpInsert, appt.ID, err)
	}

	err = g.repo.Create(ctx, appt)
	switch {
	case err == nil:
		g.observe(OpInsert, "created")
		g.logger.Info("appointment created", "record_id", appt.ID, "date", appt.Date.Format(validate.DateLayout), "time", appt.StartTime.String())
		return Outcome{
			Text:     fmt.Sprintf("Your appointment request has been posted. Your ID number is %s.", appt.ID),
			Terminal: true,
			ID:       appt.ID,
		}
	case errors.Is(err, ErrSlotTaken):
		winner, lookupErr := g.repo.FindBySlot(ctx, appt.Slot())
		if lookupErr != nil {
			span.RecordError(lookupErr)
			return g.fault(ctx, OpInsert, appt.ID, lookupErr)
		}
		g.observe(OpInsert, "duplicate")
		return alreadyBooked(winner.ID)
	case errors.Is(err, ErrIDConflict):
		g.observe(OpInsert, "id_conflict")
		return Outcome{
			Text: fmt.Sprintf("Appointment ID %s is already used by a booking on the same day of another month. "+
				"Please cancel that booking or choose a different time.", appt.ID),
			ID: appt.ID,
		}
	default:
		span.RecordError(err)
		return g.fault(ctx, OpInsert, appt.ID, err)
	}
}

// Search looks up one appointment and formats it.
func (g *Gateway) Search(ctx context.Context, id validate.RecordID) Outcome {
	ctx, span := g.tracer.Start(ctx, "appointments.search")
	defer span.End()
	span.SetAttributes(attribute.String("booking.record_id", id.String()))

	appt, err := g.repo.GetByID(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		return g.fault(ctx, OpSearch, id, err)
	}

	text, ok := g.formatter.Format(ctx, appt)
	if !ok {
		g.observe(OpSearch, "not_found")
		return Outcome{Text: fmt.Sprintf("No appointment booked with user id %s.", id), ID: id}
	}
	g.observe(OpSearch, "found")
	return Outcome{Text: text, ID: id}
}

// Update applies the present fields of patch. The record keeps its id.
func (g *Gateway) Update(ctx context.Context, id validate.RecordID, patch Patch) Outcome {
	ctx, span := g.tracer.Start(ctx, "appointments.update")
	defer span.End()
	span.SetAttributes(attribute.String("booking.record_id", id.String()))

	if _, err := g.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			g.observe(OpUpdate, "not_found")
			return Outcome{Text: fmt.Sprintf("No appointment details found for user id %s.", id), ID: id}
		}
		span.RecordError(err)
		return g.fault(ctx, OpUpdate, id, err)
	}

	if patch.Empty() {
		g.observe(OpUpdate, "noop")
		return Outcome{Text: "No new information provided to update.", ID: id}
	}

	if err := g.repo.Update(ctx, id, patch); err != nil {
		switch {
		case errors.Is(err, ErrSlotTaken):
			g.observe(OpUpdate, "slot_taken")
			return Outcome{Text: "Another appointment already exists for that phone number, date and time. No changes were made.", ID: id}
		case errors.Is(err, ErrNotFound):
			g.observe(OpUpdate, "not_found")
			return Outcome{Text: fmt.Sprintf("No appointment details found for user id %s.", id), ID: id}
		}
		span.RecordError(err)
		return g.fault(ctx, OpUpdate, id, err)
	}

	updated, err := g.repo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return g.fault(ctx, OpUpdate, id, err)
	}
	text, _ := g.formatter.Format(ctx, updated)
	g.observe(OpUpdate, "updated")
	g.logger.Info("appointment updated", "record_id", id)
	return Outcome{
		Text:     "Your appointment details have been updated.\n" + text,
		Terminal: true,
		ID:       id,
	}
}

// Delete cancels one appointment.
func (g *Gateway) Delete(ctx context.Context, id validate.RecordID) Outcome {
	ctx, span := g.tracer.Start(ctx, "appointments.delete")
	defer span.End()
	span.SetAttributes(attribute.String("booking.record_id", id.String()))

	notFound := Outcome{Text: fmt.Sprintf("No appointment details found with the user id %s.", id), ID: id}
	if _, err := g.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			g.observe(OpDelete, "not_found")
			return notFound
		}
		span.RecordError(err)
		return g.fault(ctx, OpDelete, id, err)
	}

	if err := g.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			g.observe(OpDelete, "not_found")
			return notFound
		}
		span.RecordError(err)
		return g.fault(ctx, OpDelete, id, err)
	}
	g.observe(OpDelete, "deleted")
	g.logger.Info("appointment cancelled", "record_id", id)
	return Outcome{Text: fmt.Sprintf("Appointment canceled for user id %s.", id), Terminal: true, ID: id}
}

func (g *Gateway) fault(ctx context.Context, op string, id validate.RecordID, err error) Outcome {
	g.observe(op, "error")
	g.logger.Error("appointment store fault", "operation", op, "record_id", id, "error", err)
	text := err.Error()
	if g.explainer != nil {
		text = g.explainer.Explain(ctx, text)
	}
	return Outcome{Text: text, ID: id}
}

func (g *Gateway) observe(op, outcome string) {
	g.metrics.ObserveOperation(op, outcome)
}

func alreadyBooked(id validate.RecordID) Outcome {
	return Outcome{Text: fmt.Sprintf("You have already booked an appointment. Your ID number is %s.", id), ID: id}
}
