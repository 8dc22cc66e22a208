package appointments

import (
	"context"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/appointment-agent/internal/validate"
)

var appointmentColumns = []string{
	"record_id", "phone_number", "person_name", "age",
	"appointment_date", "appointment_time", "appointment_end_time", "status",
}

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock), mock
}

func TestPostgresRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE record_id = $1")).
		WithArgs("SC_01712345678_10_02_00").
		WillReturnRows(pgxmock.NewRows(appointmentColumns).
			AddRow("SC_01712345678_10_02_00", "01712345678", "Karim", 30, "2025-03-10", "14:00:00", "14:05:00", "Pending"))

	appt, err := repo.GetByID(context.Background(), "SC_01712345678_10_02_00")
	require.NoError(t, err)
	assert.Equal(t, "Karim", appt.PersonName)
	require.NotNil(t, appt.Age)
	assert.Equal(t, 30, *appt.Age)
	assert.Equal(t, "2025-03-10", appt.Date.Format(validate.DateLayout))
	assert.Equal(t, validate.Clock{Hour: 14, Minute: 5}, appt.EndTime)
	assert.Equal(t, StatusPending, appt.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetByIDMissingAge(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE record_id = $1")).
		WithArgs("SC_01712345678_10_02_00").
		WillReturnRows(pgxmock.NewRows(appointmentColumns).
			AddRow("SC_01712345678_10_02_00", "01712345678", "Karim", 0, "2025-03-10", "14:00:00", "14:05:00", "Approved"))

	appt, err := repo.GetByID(context.Background(), "SC_01712345678_10_02_00")
	require.NoError(t, err)
	assert.Nil(t, appt.Age)
}

func TestPostgresRepository_GetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE record_id = $1")).
		WithArgs("SC_01712345678_10_02_00").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "SC_01712345678_10_02_00")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepository_FindBySlot(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE phone_number = $1 AND appointment_date = $2::date AND appointment_time = $3::time")).
		WithArgs("01712345678", "2025-03-10", "14:00:00").
		WillReturnRows(pgxmock.NewRows(appointmentColumns).
			AddRow("SC_01712345678_10_02_00", "01712345678", "Karim", 30, "2025-03-10", "14:00:00", "14:05:00", "Pending"))

	appt, err := repo.FindBySlot(context.Background(), Slot{
		PhoneNumber: "01712345678",
		Date:        day(2025, 3, 10),
		StartTime:   validate.Clock{Hour: 14},
	})
	require.NoError(t, err)
	assert.Equal(t, validate.RecordID("SC_01712345678_10_02_00"), appt.ID)
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	appt := karim().Build()

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs("SC_01712345678_10_02_00", "01712345678", "Karim", pgxmock.AnyArg(), "2025-03-10", "14:00:00", "14:05:00", "Pending").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), appt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateMapsUniqueViolations(t *testing.T) {
	cases := []struct {
		name       string
		constraint string
		want       error
	}{
		{name: "slot", constraint: "appointments_slot_key", want: ErrSlotTaken},
		{name: "primary key", constraint: "appointments_pkey", want: ErrIDConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectExec("INSERT INTO appointments").
				WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tc.constraint})

			err := repo.Create(context.Background(), karim().Build())
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPostgresRepository_UpdateWritesPresentFields(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := validate.Clock{Hour: 15, Minute: 30}
	age := 45

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET age = $1, appointment_time = $2::time, appointment_end_time = $3::time WHERE record_id = $4")).
		WithArgs(45, "15:30:00", "15:35:00", "SC_01712345678_10_02_00").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Update(context.Background(), "SC_01712345678_10_02_00", Patch{Age: &age, StartTime: &start})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpdateMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	status := StatusApproved

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET status = $1 WHERE record_id = $2")).
		WithArgs("Approved", "SC_01712345678_10_02_00").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), "SC_01712345678_10_02_00", Patch{Status: &status})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepository_Delete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM appointments WHERE record_id = $1")).
		WithArgs("SC_01712345678_10_02_00").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM appointments WHERE record_id = $1")).
		WithArgs("SC_01712345678_10_02_00").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ctx := context.Background()
	require.NoError(t, repo.Delete(ctx, "SC_01712345678_10_02_00"))
	assert.ErrorIs(t, repo.Delete(ctx, "SC_01712345678_10_02_00"), ErrNotFound)
}

func TestPostgresRepository_ListByStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE status = $1 ORDER BY appointment_date, appointment_time LIMIT $2")).
		WithArgs("Pending", 500).
		WillReturnRows(pgxmock.NewRows(appointmentColumns).
			AddRow("SC_01712345678_10_02_00", "01712345678", "Karim", 30, "2025-03-10", "14:00:00", "14:05:00", "Pending").
			AddRow("SC_01812345678_11_09_30", "01812345678", "Nadia", 0, "2025-03-11", "09:30:00", "09:35:00", "Pending"))

	list, err := repo.List(context.Background(), ListFilter{Status: StatusPending})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Nadia", list[1].PersonName)
	assert.Nil(t, list[1].Age)
}
