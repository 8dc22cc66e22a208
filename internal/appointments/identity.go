package appointments

import (
	"fmt"
	"time"

	"github.com/wolfman30/appointment-agent/internal/validate"
)

// DeriveID builds SC_<phone>_<day of month>_<12-hour hour>_<minute>.
//
// Month and year are not part of the id: two bookings on the 10th of
// different months at the same time collide, and the repository reports
// that as ErrIDConflict.
func DeriveID(phone string, date time.Time, start validate.Clock) validate.RecordID {
	return validate.RecordID(fmt.Sprintf("SC_%s_%02d_%02d_%02d", phone, date.Day(), start.Hour12(), start.Minute))
}
