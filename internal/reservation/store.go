package reservation

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"ceramica-booking/internal/booking"
)

//go:embed schema.sql
var schemaSQL string

var (
	ErrClassNotFound    = errors.New("class not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrNoAvailability   = errors.New("no availability")
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Class is a weekly class as stored, with what only the service may know.
type Class struct {
	ID              string
	Name            string
	Instructor      string
	InstructorEmail string
	WeekDay         string
	StartTime       string
	EndTime         string
	Capacity        int
}

func (c Class) Schedule() booking.ClassSchedule {
	return booking.ClassSchedule{
		ID:         c.ID,
		Name:       c.Name,
		Instructor: c.Instructor,
		WeekDay:    c.WeekDay,
		StartTime:  c.StartTime,
		EndTime:    c.EndTime,
	}
}

// Booking is one stored reservation. A RECURRENTE booking holds a seat on
// every weekly occurrence up to RecurrenceEndDate.
type Booking struct {
	ID                 string
	ClassID            string
	UserEmail          string
	UserName           string
	BookingDate        string
	StartTime          string
	EndTime            string
	BookingType        booking.BookingType
	RecurrenceEndDate  string
	Notes              string
	Status             booking.Status
	NotificationStatus booking.NotificationStatus
	NotificationError  string
	CreatedAt          time.Time
}

func (b Booking) Record() booking.BookingRecord {
	return booking.BookingRecord{
		ID:                 b.ID,
		ClassID:            b.ClassID,
		BookingDate:        b.BookingDate,
		StartTime:          b.StartTime,
		EndTime:            b.EndTime,
		BookingType:        b.BookingType,
		RecurrenceEndDate:  b.RecurrenceEndDate,
		Notes:              b.Notes,
		Status:             b.Status,
		NotificationStatus: b.NotificationStatus,
		NotificationError:  b.NotificationError,
		CreatedAt:          b.CreatedAt,
	}
}

type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	if db == nil {
		panic("reservation: db required")
	}
	return &Store{db: db}
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("reservation: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) ListClasses(ctx context.Context) ([]Class, error) {
	q := `SELECT id, name, instructor, instructor_email, week_day, start_time, end_time, capacity
	      FROM classes ORDER BY week_day, start_time, id`
	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("reservation: list classes: %w", err)
	}
	defer rows.Close()

	var out []Class
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.ID, &c.Name, &c.Instructor, &c.InstructorEmail,
			&c.WeekDay, &c.StartTime, &c.EndTime, &c.Capacity); err != nil {
			return nil, fmt.Errorf("reservation: scan class: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetClass(ctx context.Context, id string) (*Class, error) {
	q := `SELECT id, name, instructor, instructor_email, week_day, start_time, end_time, capacity
	      FROM classes WHERE id=$1`
	var c Class
	err := s.db.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.Instructor, &c.InstructorEmail,
		&c.WeekDay, &c.StartTime, &c.EndTime, &c.Capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClassNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reservation: get class: %w", err)
	}
	return &c, nil
}

// CreateBooking inserts b once every date in occurrences still has a free
// seat in the overlapping session. Bookings for one class are serialized on
// the class row.
func (s *Store) CreateBooking(ctx context.Context, b *Booking, occurrences []string, capacity int) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reservation: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM classes WHERE id=$1 FOR UPDATE`, b.ClassID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrClassNotFound
	}
	if err != nil {
		return fmt.Errorf("reservation: lock class: %w", err)
	}

	countQ := `SELECT count(*) FROM bookings
	           WHERE class_id=$1 AND status != 'cancelled'
	             AND start_time < $3 AND end_time > $2
	             AND (booking_date = $4
	                  OR (booking_type = 'RECURRENTE' AND booking_date <= $4 AND recurrence_end_date >= $4))`
	for _, date := range occurrences {
		var taken int
		if err := tx.QueryRow(ctx, countQ, b.ClassID, b.StartTime, b.EndTime, date).Scan(&taken); err != nil {
			return fmt.Errorf("reservation: count seats: %w", err)
		}
		if taken >= capacity {
			return fmt.Errorf("%w on %s", ErrNoAvailability, date)
		}
	}

	insertQ := `INSERT INTO bookings
		(class_id, user_email, user_name, booking_date, start_time, end_time, booking_type,
		 recurrence_end_date, notes, status, notification_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`
	err = tx.QueryRow(ctx, insertQ,
		b.ClassID, b.UserEmail, b.UserName, b.BookingDate, b.StartTime, b.EndTime, string(b.BookingType),
		b.RecurrenceEndDate, b.Notes, string(b.Status), string(b.NotificationStatus),
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("reservation: insert booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reservation: commit: %w", err)
	}
	return nil
}

func (s *Store) UpdateNotification(ctx context.Context, id string, status booking.NotificationStatus, notifyErr string) error {
	q := `UPDATE bookings SET notification_status=$1, notification_error=$2 WHERE id=$3`
	res, err := s.db.Exec(ctx, q, string(status), notifyErr, id)
	if err != nil {
		return fmt.Errorf("reservation: update notification: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (s *Store) ListBookingsForUser(ctx context.Context, email string) ([]Booking, error) {
	q := `SELECT id, class_id, user_email, user_name, booking_date, start_time, end_time, booking_type,
	             recurrence_end_date, notes, status, notification_status, notification_error, created_at
	      FROM bookings WHERE user_email=$1 ORDER BY booking_date, start_time`
	rows, err := s.db.Query(ctx, q, email)
	if err != nil {
		return nil, fmt.Errorf("reservation: list bookings: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		var bookingType, status, nStatus string
		if err := rows.Scan(&b.ID, &b.ClassID, &b.UserEmail, &b.UserName, &b.BookingDate,
			&b.StartTime, &b.EndTime, &bookingType, &b.RecurrenceEndDate, &b.Notes,
			&status, &nStatus, &b.NotificationError, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("reservation: scan booking: %w", err)
		}
		b.BookingType = booking.BookingType(bookingType)
		b.Status = booking.Status(status)
		b.NotificationStatus = booking.NotificationStatus(nStatus)
		out = append(out, b)
	}
	return out, rows.Err()
}

// CancelBooking cancels a booking owned by email.
func (s *Store) CancelBooking(ctx context.Context, id, email string) error {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM bookings WHERE id=$1 AND user_email=$2`, id, email).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrBookingNotFound
	}
	if err != nil {
		return fmt.Errorf("reservation: load booking: %w", err)
	}
	if booking.Status(status) == booking.StatusCancelled {
		return ErrAlreadyCancelled
	}

	res, err := s.db.Exec(ctx, `UPDATE bookings SET status='cancelled' WHERE id=$1 AND status != 'cancelled'`, id)
	if err != nil {
		return fmt.Errorf("reservation: cancel booking: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrAlreadyCancelled
	}
	return nil
}
