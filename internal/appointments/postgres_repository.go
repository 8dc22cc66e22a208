package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/appointment-agent/internal/validate"
)

const (
	uniqueViolation = "23505"
	slotConstraint  = "appointments_slot_key"
	defaultListSize = 500
)

// Dates and times travel as text so the column types stay DATE and TIME
// without pgtype conversions.
const selectColumns = `record_id, phone_number, person_name, COALESCE(age, 0),
	to_char(appointment_date, 'YYYY-MM-DD'),
	to_char(appointment_time, 'HH24:MI:SS'),
	to_char(appointment_end_time, 'HH24:MI:SS'),
	status`

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the appointments table.
type PostgresRepository struct {
	db db
}

// NewPostgresRepository initializes a repo backed by a pgx pool (or pgxmock).
func NewPostgresRepository(pool db) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

var _ Repository = (*PostgresRepository)(nil)

// FindExact runs the full-tuple existence check used before inserts.
func (r *PostgresRepository) FindExact(ctx context.Context, appt Appointment) (*Appointment, error) {
	query := `SELECT ` + selectColumns + `
		FROM appointments
		WHERE record_id = $1
		AND person_name = $2
		AND phone_number = $3
		AND age IS NOT DISTINCT FROM $4
		AND appointment_date = $5::date
		AND appointment_time = $6::time
		AND appointment_end_time = $7::time`
	row := r.db.QueryRow(ctx, query,
		appt.ID.String(),
		appt.PersonName,
		appt.PhoneNumber,
		appt.Age,
		appt.Date.Format(validate.DateLayout),
		appt.StartTime.String(),
		appt.EndTime.String(),
	)
	return scanOne(row, "find exact")
}

// FindBySlot returns the appointment holding the (phone, date, time) slot.
func (r *PostgresRepository) FindBySlot(ctx context.Context, slot Slot) (*Appointment, error) {
	query := `SELECT ` + selectColumns + `
		FROM appointments
		WHERE phone_number = $1 AND appointment_date = $2::date AND appointment_time = $3::time`
	row := r.db.QueryRow(ctx, query, slot.PhoneNumber, slot.Date.Format(validate.DateLayout), slot.StartTime.String())
	return scanOne(row, "find by slot")
}

// GetByID fetches one appointment.
func (r *PostgresRepository) GetByID(ctx context.Context, id validate.RecordID) (*Appointment, error) {
	query := `SELECT ` + selectColumns + ` FROM appointments WHERE record_id = $1`
	return scanOne(r.db.QueryRow(ctx, query, id.String()), "get")
}

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, appt Appointment) error {
	query := `
		INSERT INTO appointments (record_id, phone_number, person_name, age, appointment_date, appointment_time, appointment_end_time, status)
		VALUES ($1, $2, $3, $4, $5::date, $6::time, $7::time, $8)
	`
	_, err := r.db.Exec(ctx, query,
		appt.ID.String(),
		appt.PhoneNumber,
		appt.PersonName,
		appt.Age,
		appt.Date.Format(validate.DateLayout),
		appt.StartTime.String(),
		appt.EndTime.String(),
		string(appt.Status),
	)
	if err != nil {
		return mapWriteError("insert", err)
	}
	return nil
}

// Update writes only the fields present in patch.
func (r *PostgresRepository) Update(ctx context.Context, id validate.RecordID, patch Patch) error {
	if patch.Empty() {
		return nil
	}

	var (
		fields []string
		args   []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		fields = append(fields, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.PhoneNumber != nil {
		set("phone_number", *patch.PhoneNumber)
	}
	if patch.PersonName != nil {
		set("person_name", *patch.PersonName)
	}
	if patch.Age != nil {
		set("age", *patch.Age)
	}
	if patch.Date != nil {
		args = append(args, patch.Date.Format(validate.DateLayout))
		fields = append(fields, fmt.Sprintf("appointment_date = $%d::date", len(args)))
	}
	if patch.StartTime != nil {
		args = append(args, patch.StartTime.String())
		fields = append(fields, fmt.Sprintf("appointment_time = $%d::time", len(args)))
		args = append(args, patch.StartTime.Add(SlotLength).String())
		fields = append(fields, fmt.Sprintf("appointment_end_time = $%d::time", len(args)))
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	args = append(args, id.String())

	query := fmt.Sprintf("UPDATE appointments SET %s WHERE record_id = $%d", strings.Join(fields, ", "), len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one appointment.
func (r *PostgresRepository) Delete(ctx context.Context, id validate.RecordID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE record_id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("appointments: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns appointments ordered by date and time.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListSize
	}

	query := `SELECT ` + selectColumns + ` FROM appointments`
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` WHERE status = $1`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY appointment_date, appointment_time LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: list scan: %w", err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list rows: %w", err)
	}
	return out, nil
}

func scanOne(row pgx.Row, op string) (*Appointment, error) {
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: %s: %w", op, err)
	}
	return appt, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		id, date, start, end, status string
		age                          int
		appt                         Appointment
	)
	if err := row.Scan(&id, &appt.PhoneNumber, &appt.PersonName, &age, &date, &start, &end, &status); err != nil {
		return nil, err
	}

	appt.ID = validate.RecordID(id)
	appt.Status = Status(status)
	if age > 0 {
		appt.Age = &age
	}

	var err error
	if appt.Date, err = time.Parse(validate.DateLayout, date); err != nil {
		return nil, fmt.Errorf("decode date: %w", err)
	}
	if appt.StartTime, err = validate.ParseClock(start); err != nil {
		return nil, err
	}
	if appt.EndTime, err = validate.ParseClock(end); err != nil {
		return nil, err
	}
	return &appt, nil
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == slotConstraint {
			return ErrSlotTaken
		}
		return ErrIDConflict
	}
	return fmt.Errorf("appointments: %s: %w", op, err)
}
