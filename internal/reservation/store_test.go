package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ceramica-booking/internal/booking"
)

var classColumns = []string{"id", "name", "instructor", "instructor_email", "week_day", "start_time", "end_time", "capacity"}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS classes").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAndGetClasses(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name, instructor").
		WillReturnRows(pgxmock.NewRows(classColumns).
			AddRow("c1", "Torno", "Ana", "ana@example.com", "Lunes", "10:00", "13:00", 6).
			AddRow("c3", "Modelado", "Luis", "", "Jueves", "17:00", "20:00", 8))
	mock.ExpectQuery("SELECT id, name, instructor").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	classes, err := store.ListClasses(context.Background())
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, 6, classes[0].Capacity)
	assert.Equal(t, booking.ClassSchedule{ID: "c3", Name: "Modelado", Instructor: "Luis", WeekDay: "Jueves", StartTime: "17:00", EndTime: "20:00"}, classes[1].Schedule())

	_, err = store.GetClass(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrClassNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newBooking() *Booking {
	return &Booking{
		ClassID:            "c1",
		UserEmail:          "marta@example.com",
		UserName:           "Marta",
		BookingDate:        "2026-10-19",
		StartTime:          "10:00",
		EndTime:            "12:00",
		BookingType:        booking.Puntual,
		Status:             booking.StatusConfirmed,
		NotificationStatus: booking.NotificationSending,
	}
}

func TestCreateBookingChecksEveryOccurrence(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	b := newBooking()
	b.BookingType = booking.Recurrente
	b.RecurrenceEndDate = "2026-10-26"

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM classes").WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("c1"))
	mock.ExpectQuery("SELECT count").WithArgs("c1", "10:00", "12:00", "2026-10-19").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery("SELECT count").WithArgs("c1", "10:00", "12:00", "2026-10-26").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs("c1", "marta@example.com", "Marta", "2026-10-19", "10:00", "12:00", "RECURRENTE",
			"2026-10-26", "", "confirmed", "sending").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("b1", created))
	mock.ExpectCommit()

	err := store.CreateBooking(context.Background(), b, []string{"2026-10-19", "2026-10-26"}, 6)
	require.NoError(t, err)
	assert.Equal(t, "b1", b.ID)
	assert.Equal(t, created, b.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingFullSession(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM classes").WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("c1"))
	mock.ExpectQuery("SELECT count").WithArgs("c1", "10:00", "12:00", "2026-10-19").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(6))
	mock.ExpectRollback()

	err := store.CreateBooking(context.Background(), newBooking(), []string{"2026-10-19"}, 6)
	assert.ErrorIs(t, err, ErrNoAvailability)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingUnknownClass(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM classes").WithArgs("c1").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := store.CreateBooking(context.Background(), newBooking(), []string{"2026-10-19"}, 6)
	assert.ErrorIs(t, err, ErrClassNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNotification(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE bookings SET notification_status").
		WithArgs("failed", "smtp down", "b1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE bookings SET notification_status").
		WithArgs("sent", "", "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.UpdateNotification(context.Background(), "b1", booking.NotificationFailed, "smtp down"))
	assert.ErrorIs(t, store.UpdateNotification(context.Background(), "gone", booking.NotificationSent, ""), ErrBookingNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListBookingsForUser(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, class_id, user_email").WithArgs("marta@example.com").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "class_id", "user_email", "user_name", "booking_date", "start_time", "end_time", "booking_type",
			"recurrence_end_date", "notes", "status", "notification_status", "notification_error", "created_at",
		}).AddRow("b1", "c1", "marta@example.com", "Marta", "2026-10-19", "10:00", "12:00", "PUNTUAL",
			"", "", "confirmed", "sent", "", created))

	list, err := store.ListBookingsForUser(context.Background(), "marta@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	rec := list[0].Record()
	assert.Equal(t, booking.Puntual, rec.BookingType)
	assert.Equal(t, booking.StatusConfirmed, rec.Status)
	assert.Equal(t, booking.NotificationSent, rec.NotificationStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

var errConnReset = errors.New("connection reset")

func TestCancelBooking(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name: "cancels",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT status FROM bookings").WithArgs("b1", "marta@example.com").
					WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("confirmed"))
				mock.ExpectExec("UPDATE bookings SET status='cancelled'").WithArgs("b1").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "not found",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT status FROM bookings").WithArgs("b1", "marta@example.com").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: ErrBookingNotFound,
		},
		{
			name: "already cancelled",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT status FROM bookings").WithArgs("b1", "marta@example.com").
					WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("cancelled"))
			},
			wantErr: ErrAlreadyCancelled,
		},
		{
			name: "database down",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT status FROM bookings").WithArgs("b1", "marta@example.com").
					WillReturnError(errConnReset)
			},
			wantErr: errConnReset,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.setup(mock)
			err := store.CancelBooking(context.Background(), "b1", "marta@example.com")
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
