package appointments

import (
	"context"

	"github.com/wolfman30/appointment-agent/internal/validate"
)

// Repository is the storage behind the gateway and the dashboard.
// Lookups return ErrNotFound when nothing matches.
type Repository interface {
	// FindExact matches on every stored field except status.
	FindExact(ctx context.Context, appt Appointment) (*Appointment, error)
	FindBySlot(ctx context.Context, slot Slot) (*Appointment, error)
	GetByID(ctx context.Context, id validate.RecordID) (*Appointment, error)
	// Create returns ErrSlotTaken or ErrIDConflict on uniqueness violations.
	Create(ctx context.Context, appt Appointment) error
	Update(ctx context.Context, id validate.RecordID, patch Patch) error
	Delete(ctx context.Context, id validate.RecordID) error
	List(ctx context.Context, filter ListFilter) ([]Appointment, error)
}
