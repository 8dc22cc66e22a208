package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/appointment-agent/internal/appointments"
	httpmiddleware "github.com/wolfman30/appointment-agent/internal/http/middleware"
	"github.com/wolfman30/appointment-agent/internal/validate"
	"github.com/wolfman30/appointment-agent/pkg/logging"
)

const defaultListLimit = 500

// StatusNotifier tells customers about staff changes to their booking.
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, appt appointments.Appointment, previous appointments.Status) error
	Forget(ctx context.Context, appt appointments.Appointment) error
}

// AdminAppointmentsHandler is the staff dashboard's direct path to the
// appointment records. It bypasses the assistant entirely.
type AdminAppointmentsHandler struct {
	repo     appointments.Repository
	notifier StatusNotifier
	logger   *logging.Logger
}

// NewAdminAppointmentsHandler creates a dashboard handler. A nil notifier
// disables customer messages.
func NewAdminAppointmentsHandler(repo appointments.Repository, notifier StatusNotifier, logger *logging.Logger) *AdminAppointmentsHandler {
	if repo == nil {
		panic("handlers: appointment repository cannot be nil")
	}
	return &AdminAppointmentsHandler{
		repo:     repo,
		notifier: notifier,
		logger:   logger.Component("admin_appointments"),
	}
}

// Routes mounts the dashboard endpoints.
func (h *AdminAppointmentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

// AppointmentResponse is one appointment row with every stored column.
type AppointmentResponse struct {
	RecordID    string `json:"record_id"`
	PhoneNumber string `json:"phone_number"`
	PersonName  string `json:"person_name"`
	Age         *int   `json:"age"`
	Date        string `json:"appointment_date"`
	StartTime   string `json:"appointment_time"`
	EndTime     string `json:"appointment_end_time"`
	Status      string `json:"status"`
}

// AppointmentsListResponse is returned by the list endpoint.
type AppointmentsListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
}

// UpdateAppointmentRequest carries the columns staff may edit. Absent
// fields keep their stored value.
type UpdateAppointmentRequest struct {
	PhoneNumber *string `json:"phone_number"`
	PersonName  *string `json:"person_name"`
	Age         any     `json:"age"`
	Date        *string `json:"appointment_date"`
	StartTime   *string `json:"appointment_time"`
	Status      *string `json:"status"`
}

// UpdateAppointmentResponse reports the stored row and whether the customer was told.
type UpdateAppointmentResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Notified    bool                `json:"notified"`
	NotifyError string              `json:"notify_error,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// List handles GET /admin/appointments[?status=].
func (h *AdminAppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := appointments.ListFilter{Limit: defaultListLimit}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := appointments.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown status")
			return
		}
		filter.Status = status
	}

	rows, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	resp := AppointmentsListResponse{Appointments: make([]AppointmentResponse, 0, len(rows)), Total: len(rows)}
	for _, appt := range rows {
		resp.Appointments = append(resp.Appointments, toResponse(appt))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /admin/appointments/{id}.
func (h *AdminAppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(*appt))
}

// Update handles PUT /admin/appointments/{id}. Every successful edit is
// followed by a customer notification.
func (h *AdminAppointmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	var req UpdateAppointmentRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	patch, errs := buildPatch(req)
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	log := h.logger.With("record_id", existing.ID.String(), "staff", httpmiddleware.AdminSubject(r.Context()))
	if err := h.repo.Update(r.Context(), existing.ID, patch); err != nil {
		switch {
		case errors.Is(err, appointments.ErrNotFound):
			writeError(w, http.StatusNotFound, "appointment not found")
		case errors.Is(err, appointments.ErrSlotTaken):
			writeError(w, http.StatusConflict, "that phone number already has an appointment at this date and time")
		default:
			log.Error("failed to update appointment", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update appointment")
		}
		return
	}

	updated, err := h.repo.GetByID(r.Context(), existing.ID)
	if err != nil {
		log.Error("failed to reload appointment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload appointment")
		return
	}
	log.Info("appointment updated by staff", "previous_status", existing.Status, "status", updated.Status)

	resp := UpdateAppointmentResponse{Appointment: toResponse(*updated)}
	if h.notifier != nil {
		if err := h.notifier.NotifyStatusChange(r.Context(), *updated, existing.Status); err != nil {
			log.Warn("customer notification failed", "error", err)
			resp.NotifyError = "customer could not be notified"
		} else {
			resp.Notified = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /admin/appointments/{id}. The customer's
// conversation is cleared without a message.
func (h *AdminAppointmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}
	log := h.logger.With("record_id", existing.ID.String(), "staff", httpmiddleware.AdminSubject(r.Context()))

	if err := h.repo.Delete(r.Context(), existing.ID); err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		log.Error("failed to delete appointment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete appointment")
		return
	}
	log.Info("appointment deleted by staff")

	if h.notifier != nil {
		if err := h.notifier.Forget(r.Context(), *existing); err != nil {
			log.Warn("failed to clear customer session", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminAppointmentsHandler) load(w http.ResponseWriter, r *http.Request) (*appointments.Appointment, bool) {
	id, err := validate.RecordIDFrom(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	appt, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return nil, false
		}
		h.logger.Error("failed to load appointment", "record_id", id.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load appointment")
		return nil, false
	}
	return appt, true
}

func buildPatch(req UpdateAppointmentRequest) (appointments.Patch, []fieldError) {
	var (
		patch appointments.Patch
		errs  []fieldError
	)
	reject := func(err error) {
		var verr *validate.Error
		if errors.As(err, &verr) {
			errs = append(errs, fieldError{Field: verr.Field, Message: verr.Message})
			return
		}
		errs = append(errs, fieldError{Message: err.Error()})
	}

	if req.PhoneNumber != nil {
		if phone, err := validate.Phone(*req.PhoneNumber); err != nil {
			reject(err)
		} else {
			patch.PhoneNumber = &phone
		}
	}
	if req.PersonName != nil {
		if name, err := validate.Name(*req.PersonName); err != nil {
			reject(err)
		} else {
			patch.PersonName = &name
		}
	}
	if req.Age != nil {
		if age, err := validate.Age(req.Age); err != nil {
			reject(err)
		} else {
			patch.Age = &age
		}
	}
	if req.Date != nil {
		if date, err := validate.FlexibleDate(*req.Date); err != nil {
			reject(err)
		} else {
			patch.Date = &date
		}
	}
	if req.StartTime != nil {
		if clock, err := validate.Time(*req.StartTime); err != nil {
			reject(err)
		} else {
			patch.StartTime = &clock
		}
	}
	if req.Status != nil {
		if status, err := appointments.ParseStatus(*req.Status); err != nil {
			errs = append(errs, fieldError{Field: "status", Message: "Invalid status. Use Pending, Approved, Rejected or Complete."})
		} else {
			patch.Status = &status
		}
	}
	return patch, errs
}

func toResponse(a appointments.Appointment) AppointmentResponse {
	return AppointmentResponse{
		RecordID:    a.ID.String(),
		PhoneNumber: a.PhoneNumber,
		PersonName:  a.PersonName,
		Age:         a.Age,
		Date:        a.Date.Format(validate.DateLayout),
		StartTime:   a.StartTime.String(),
		EndTime:     a.EndTime.String(),
		Status:      string(a.Status),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
