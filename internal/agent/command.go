package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/appointment-agent/internal/appointments"
	"github.com/wolfman30/appointment-agent/internal/conversation"
	"github.com/wolfman30/appointment-agent/internal/validate"
)

// ErrUnknownOperation means the model selected a tool outside the catalog.
var ErrUnknownOperation = errors.New("agent: unknown operation")

// Command is the model's choice for one utterance. The set of variants is
// closed; Dispatcher matches them exhaustively.
type Command interface {
	Operation() string
	isCommand()
}

type InsertCommand struct {
	Request appointments.NewAppointment
}

type SearchCommand struct {
	ID validate.RecordID
}

type UpdateCommand struct {
	ID    validate.RecordID
	Patch appointments.Patch
}

type DeleteCommand struct {
	ID validate.RecordID
}

// NoCommand is a plain conversational reply, e.g. asking for a missing detail.
type NoCommand struct {
	Text string
}

func (InsertCommand) Operation() string { return appointments.OpInsert }
func (SearchCommand) Operation() string { return appointments.OpSearch }
func (UpdateCommand) Operation() string { return appointments.OpUpdate }
func (DeleteCommand) Operation() string { return appointments.OpDelete }
func (NoCommand) Operation() string     { return "" }

func (InsertCommand) isCommand() {}
func (SearchCommand) isCommand() {}
func (UpdateCommand) isCommand() {}
func (DeleteCommand) isCommand() {}
func (NoCommand) isCommand()     {}

// Rejection collects field validation failures in argument order.
type Rejection struct {
	Operation string
	Errors    []*validate.Error
}

func (r *Rejection) Error() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "\n")
}

func (r *Rejection) add(err error) {
	var verr *validate.Error
	if errors.As(err, &verr) {
		r.Errors = append(r.Errors, verr)
		return
	}
	r.Errors = append(r.Errors, &validate.Error{Message: err.Error()})
}

// Decode turns the model response into a Command. It returns
// validate.ErrInvalidRecordID for a bad id, a *Rejection for other field
// failures and ErrUnknownOperation for tools outside the catalog.
func Decode(resp conversation.LLMResponse) (Command, error) {
	if resp.ToolCall == nil {
		return NoCommand{Text: resp.Text}, nil
	}
	args := arguments(resp.ToolCall.Arguments)

	switch resp.ToolCall.Name {
	case appointments.OpInsert:
		return decodeInsert(args)
	case appointments.OpSearch:
		id, err := validate.RecordIDFrom(args.raw("user_id"))
		if err != nil {
			return nil, err
		}
		return SearchCommand{ID: id}, nil
	case appointments.OpUpdate:
		return decodeUpdate(args)
	case appointments.OpDelete:
		id, err := validate.RecordIDFrom(args.raw("user_id"))
		if err != nil {
			return nil, err
		}
		return DeleteCommand{ID: id}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, resp.ToolCall.Name)
	}
}

func decodeInsert(args arguments) (Command, error) {
	rej := &Rejection{Operation: appointments.OpInsert}
	var req appointments.NewAppointment

	if phone, err := validate.Phone(args.text("phone_number")); err != nil {
		rej.add(err)
	} else {
		req.PhoneNumber = phone
	}
	if name, err := validate.Name(args.text("person_name")); err != nil {
		rej.add(err)
	} else {
		req.PersonName = name
	}
	if date, err := validate.Date(args.text("appointment_date")); err != nil {
		rej.add(err)
	} else {
		req.Date = date
	}
	if start, err := validate.Time(args.text("appointment_time")); err != nil {
		rej.add(err)
	} else {
		req.StartTime = start
	}
	if args.present("age") {
		if age, err := validate.Age(args.raw("age")); err != nil {
			rej.add(err)
		} else {
			req.Age = &age
		}
	}

	if len(rej.Errors) > 0 {
		return nil, rej
	}
	return InsertCommand{Request: req}, nil
}

func decodeUpdate(args arguments) (Command, error) {
	id, err := validate.RecordIDFrom(args.raw("user_id"))
	if err != nil {
		return nil, err
	}

	rej := &Rejection{Operation: appointments.OpUpdate}
	var patch appointments.Patch

	if args.present("phone_number") {
		if phone, err := validate.Phone(args.text("phone_number")); err != nil {
			rej.add(err)
		} else {
			patch.PhoneNumber = &phone
		}
	}
	if args.present("person_name") {
		if name, err := validate.Name(args.text("person_name")); err != nil {
			rej.add(err)
		} else {
			patch.PersonName = &name
		}
	}
	if args.present("age") {
		if age, err := validate.Age(args.raw("age")); err != nil {
			rej.add(err)
		} else {
			patch.Age = &age
		}
	}
	if args.present("appointment_date") {
		if date, err := validate.FlexibleDate(args.text("appointment_date")); err != nil {
			rej.add(err)
		} else {
			patch.Date = &date
		}
	}
	if args.present("appointment_time") {
		if start, err := validate.Time(args.text("appointment_time")); err != nil {
			rej.add(err)
		} else {
			patch.StartTime = &start
		}
	}

	if len(rej.Errors) > 0 {
		return nil, rej
	}
	return UpdateCommand{ID: id, Patch: patch}, nil
}

// arguments reads raw tool arguments. Empty strings and nulls count as
// absent, matching how models fill optional parameters.
type arguments map[string]any

func (a arguments) raw(key string) any {
	return a[key]
}

func (a arguments) present(key string) bool {
	v, ok := a[key]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// text renders scalars as strings so a numeric phone is still validated
// rather than silently dropped.
func (a arguments) text(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
