package appointments

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/appointment-agent/internal/validate"
)

// Rephraser turns a plain block of text into conversational text. It is
// best-effort: implementations return the input when they cannot help.
type Rephraser interface {
	Rephrase(ctx context.Context, text string) string
}

// Formatter renders stored appointments for customers.
type Formatter struct {
	rephraser Rephraser
}

// NewFormatter creates a formatter; a nil rephraser returns the raw block.
func NewFormatter(rephraser Rephraser) *Formatter {
	return &Formatter{rephraser: rephraser}
}

// Format renders appt. A nil appointment yields ("", false); callers
// choose their own not-found text.
func (f *Formatter) Format(ctx context.Context, appt *Appointment) (string, bool) {
	if appt == nil {
		return "", false
	}
	block := RenderBlock(*appt)
	if f == nil || f.rephraser == nil {
		return block, true
	}
	return f.rephraser.Rephrase(ctx, block), true
}

// RenderBlock is the fixed-order labeled block shown for one appointment.
func RenderBlock(appt Appointment) string {
	age := "Not provided"
	if appt.Age != nil {
		age = fmt.Sprintf("%d", *appt.Age)
	}

	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "User id              : %s\n", appt.ID)
	fmt.Fprintf(&b, "Person name          : %s\n", appt.PersonName)
	fmt.Fprintf(&b, "Phone number         : %s\n", appt.PhoneNumber)
	fmt.Fprintf(&b, "Age                  : %s\n", age)
	fmt.Fprintf(&b, "Appointment date     : %s\n", appt.Date.Format(validate.DayFirstLayout))
	fmt.Fprintf(&b, "Appointment time     : %s\n", appt.StartTime.Short())
	fmt.Fprintf(&b, "Appointment end time : %s\n", appt.EndTime.Short())
	fmt.Fprintf(&b, "Status               : %s", appt.Status)
	return b.String()
}
