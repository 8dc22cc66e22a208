package appointments

import "errors"

var (
	// ErrNotFound is returned when no appointment matches.
	ErrNotFound = errors.New("appointments: not found")

	// ErrSlotTaken is returned when the (phone, date, time) tuple is already booked.
	ErrSlotTaken = errors.New("appointments: slot already booked")

	// ErrIDConflict is returned when the derived id belongs to a different slot.
	ErrIDConflict = errors.New("appointments: record id already in use")

	// ErrInvalidStatus is returned for unknown status values.
	ErrInvalidStatus = errors.New("appointments: invalid status")
)
