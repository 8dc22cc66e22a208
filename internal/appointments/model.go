package appointments

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/appointment-agent/internal/validate"
)

// SlotLength is the fixed span of every appointment.
const SlotLength = 5 * time.Minute

// Status is the staff-controlled lifecycle state of an appointment.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
	StatusComplete Status = "Complete"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusComplete}

// ParseStatus matches a status case-insensitively.
func ParseStatus(value string) (Status, error) {
	for _, s := range Statuses {
		if strings.EqualFold(strings.TrimSpace(value), string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
}

// Appointment is one booked slot for one customer.
type Appointment struct {
	ID          validate.RecordID
	PhoneNumber string
	PersonName  string
	Age         *int
	Date        time.Time
	StartTime   validate.Clock
	EndTime     validate.Clock
	Status      Status
}

// Slot identifies the (phone, date, time) tuple that may be booked once.
type Slot struct {
	PhoneNumber string
	Date        time.Time
	StartTime   validate.Clock
}

// Slot returns the uniqueness tuple of the appointment.
func (a Appointment) Slot() Slot {
	return Slot{PhoneNumber: a.PhoneNumber, Date: a.Date, StartTime: a.StartTime}
}

// Equal compares slots by calendar day rather than time.Time identity.
func (s Slot) Equal(o Slot) bool {
	return s.PhoneNumber == o.PhoneNumber &&
		s.Date.Format(validate.DateLayout) == o.Date.Format(validate.DateLayout) &&
		s.StartTime == o.StartTime
}

// NewAppointment is a validated insert request.
type NewAppointment struct {
	PhoneNumber string
	PersonName  string
	Age         *int
	Date        time.Time
	StartTime   validate.Clock
}

// Build derives the record id and end time and applies the default status.
func (n NewAppointment) Build() Appointment {
	return Appointment{
		ID:          DeriveID(n.PhoneNumber, n.Date, n.StartTime),
		PhoneNumber: n.PhoneNumber,
		PersonName:  strings.TrimSpace(n.PersonName),
		Age:         n.Age,
		Date:        n.Date,
		StartTime:   n.StartTime,
		EndTime:     n.StartTime.Add(SlotLength),
		Status:      StatusPending,
	}
}

// Patch carries the fields present in an update. Nil means "leave as is".
// The record id never changes, even when phone, date or time do.
type Patch struct {
	PhoneNumber *string
	PersonName  *string
	Age         *int
	Date        *time.Time
	StartTime   *validate.Clock
	Status      *Status
}

// Empty reports whether no field is present.
func (p Patch) Empty() bool {
	return p.PhoneNumber == nil && p.PersonName == nil && p.Age == nil &&
		p.Date == nil && p.StartTime == nil && p.Status == nil
}

// Apply writes the present fields onto a. A new start time also moves the end time.
func (p Patch) Apply(a *Appointment) {
	if p.PhoneNumber != nil {
		a.PhoneNumber = *p.PhoneNumber
	}
	if p.PersonName != nil {
		a.PersonName = *p.PersonName
	}
	if p.Age != nil {
		age := *p.Age
		a.Age = &age
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.StartTime != nil {
		a.StartTime = *p.StartTime
		a.EndTime = p.StartTime.Add(SlotLength)
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
}

// ListFilter narrows dashboard listings.
type ListFilter struct {
	Status Status
	Limit  int
}

// TransportAddress maps a local 11 digit number to its WhatsApp address
// under the given dialing code. The trunk 0 is dropped, e.g.
// ("880", 01712345678) -> whatsapp:+8801712345678.
func TransportAddress(countryCode, phone string) string {
	code := strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	return "whatsapp:+" + code + strings.TrimPrefix(strings.TrimSpace(phone), "0")
}
