package appointments

import (
	"context"
	"sort"
	"sync"

	"github.com/wolfman30/appointment-agent/internal/validate"
)

// InMemoryRepository mirrors PostgresRepository semantics, including the
// slot and primary key uniqueness rules, for local runs and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[validate.RecordID]Appointment
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[validate.RecordID]Appointment)}
}

var _ Repository = (*InMemoryRepository)(nil)

func (r *InMemoryRepository) FindExact(ctx context.Context, appt Appointment) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	existing, ok := r.items[appt.ID]
	if !ok || !sameFields(existing, appt) {
		return nil, ErrNotFound
	}
	return &existing, nil
}

func (r *InMemoryRepository) FindBySlot(ctx context.Context, slot Slot) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, appt := range r.items {
		if appt.Slot().Equal(slot) {
			found := appt
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id validate.RecordID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	appt, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &appt, nil
}

func (r *InMemoryRepository) Create(ctx context.Context, appt Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slotHeldLocked(appt.Slot(), "") {
		return ErrSlotTaken
	}
	if _, ok := r.items[appt.ID]; ok {
		return ErrIDConflict
	}
	r.items[appt.ID] = appt
	return nil
}

func (r *InMemoryRepository) Update(ctx context.Context, id validate.RecordID, patch Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	patch.Apply(&appt)
	if r.slotHeldLocked(appt.Slot(), id) {
		return ErrSlotTaken
	}
	r.items[id] = appt
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id validate.RecordID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	r.mu.RLock()
	out := make([]Appointment, 0, len(r.items))
	for _, appt := range r.items {
		if filter.Status != "" && appt.Status != filter.Status {
			continue
		}
		out = append(out, appt)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime.String() < out[j].StartTime.String()
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Len returns the number of stored appointments.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *InMemoryRepository) slotHeldLocked(slot Slot, except validate.RecordID) bool {
	for id, appt := range r.items {
		if id != except && appt.Slot().Equal(slot) {
			return true
		}
	}
	return false
}

func sameFields(a, b Appointment) bool {
	return a.ID == b.ID &&
		a.PersonName == b.PersonName &&
		a.PhoneNumber == b.PhoneNumber &&
		sameAge(a.Age, b.Age) &&
		a.Date.Equal(b.Date) &&
		a.StartTime == b.StartTime &&
		a.EndTime == b.EndTime
}

func sameAge(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
