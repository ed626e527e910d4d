// Package reservation is the booking service behind the wizard: it owns the
// class catalog and the bookings table, checks seats per session and tells
// the instructor.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"ceramica-booking/internal/booking"
	"ceramica-booking/internal/calendar"
	"ceramica-booking/internal/logging"
	"ceramica-booking/internal/metrics"
	"ceramica-booking/internal/notify"
	"ceramica-booking/internal/schedule"
)

var tracer = otel.Tracer("ceramica.internal.reservation")

var ErrInvalidBooking = errors.New("invalid booking")

// ValidationError says which field of a request was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidBooking }

// BookingStore is what the service needs from Store.
type BookingStore interface {
	ListClasses(ctx context.Context) ([]Class, error)
	GetClass(ctx context.Context, id string) (*Class, error)
	CreateBooking(ctx context.Context, b *Booking, occurrences []string, capacity int) error
	UpdateNotification(ctx context.Context, id string, status booking.NotificationStatus, notifyErr string) error
	ListBookingsForUser(ctx context.Context, email string) ([]Booking, error)
	CancelBooking(ctx context.Context, id, email string) error
}

type InstructorNotifier interface {
	BookingCreated(ctx context.Context, b notify.BookingNotice) error
}

type CalendarPublisher interface {
	Publish(ctx context.Context, e calendar.Entry) (string, error)
}

type Service struct {
	store    BookingStore
	notifier InstructorNotifier
	calendar CalendarPublisher
	metrics  *metrics.ReservationMetrics
	logger   *zap.Logger
	now      func() time.Time
}

type ServiceOption func(*Service)

// WithCalendar mirrors new bookings onto the instructor calendar.
func WithCalendar(p CalendarPublisher) ServiceOption {
	return func(s *Service) { s.calendar = p }
}

func WithMetrics(m *metrics.ReservationMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(store BookingStore, notifier InstructorNotifier, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClassGrid lists the classes open for booking.
func (s *Service) ClassGrid(ctx context.Context) ([]booking.ClassSchedule, error) {
	classes, err := s.store.ListClasses(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]booking.ClassSchedule, 0, len(classes))
	for _, c := range classes {
		out = append(out, c.Schedule())
	}
	return out, nil
}

// Book stores a booking for user and notifies the instructor. A failed e-mail
// does not fail the booking; it is reported in the record.
func (s *Service) Book(ctx context.Context, user booking.User, req booking.SubmitRequest) (*booking.BookingRecord, error) {
	ctx, span := tracer.Start(ctx, "reservation.book", trace.WithAttributes(
		attribute.String("ceramica.class_id", req.ClassEntity.ID),
		attribute.String("ceramica.booking_type", string(req.BookingType)),
	))
	defer span.End()

	class, err := s.store.GetClass(ctx, req.ClassEntity.ID)
	if errors.Is(err, ErrClassNotFound) {
		s.metrics.ObserveBooking(string(req.BookingType), "invalid")
		return nil, &ValidationError{Field: "classEntity.id", Reason: "unknown class"}
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	occurrences, err := Validate(*class, req, s.now())
	if err != nil {
		s.metrics.ObserveBooking(string(req.BookingType), "invalid")
		return nil, err
	}
	bookingType, _ := schedule.ParseBookingType(string(req.BookingType))

	b := &Booking{
		ClassID:            class.ID,
		UserEmail:          user.Email,
		UserName:           user.Name,
		BookingDate:        req.BookingDate,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		BookingType:        bookingType,
		Notes:              strings.TrimSpace(req.Notes),
		Status:             booking.StatusConfirmed,
		NotificationStatus: booking.NotificationSending,
	}
	if req.RecurrenceEndDate != nil {
		b.RecurrenceEndDate = *req.RecurrenceEndDate
	}

	if err := s.store.CreateBooking(ctx, b, occurrences, class.Capacity); err != nil {
		result := "error"
		if errors.Is(err, ErrNoAvailability) {
			result = "no_availability"
		}
		s.metrics.ObserveBooking(string(req.BookingType), result)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		return nil, err
	}
	s.metrics.ObserveBooking(string(req.BookingType), "created")
	span.SetAttributes(attribute.String("ceramica.booking_id", b.ID))
	s.logger.Info("booking created",
		zap.String("booking", b.ID), zap.String("class", class.ID),
		zap.String("date", b.BookingDate), zap.String("start", b.StartTime), zap.Int("occurrences", len(occurrences)))

	s.notifyInstructor(ctx, *class, b)
	s.publishCalendar(ctx, *class, b)

	rec := b.Record()
	return &rec, nil
}

func (s *Service) notifyInstructor(ctx context.Context, class Class, b *Booking) {
	err := s.notifier.BookingCreated(ctx, notify.BookingNotice{
		ClassName:         class.Name,
		InstructorName:    class.Instructor,
		InstructorEmail:   class.InstructorEmail,
		StudentName:       b.UserName,
		StudentEmail:      b.UserEmail,
		BookingDate:       b.BookingDate,
		StartTime:         b.StartTime,
		EndTime:           b.EndTime,
		BookingType:       string(b.BookingType),
		RecurrenceEndDate: b.RecurrenceEndDate,
		Notes:             b.Notes,
	})
	if err != nil {
		s.logger.Warn("instructor notification failed", zap.String("booking", b.ID), zap.Error(err))
		b.NotificationStatus = booking.NotificationFailed
		b.NotificationError = err.Error()
	} else {
		b.NotificationStatus = booking.NotificationSent
	}
	s.metrics.ObserveNotification(string(b.NotificationStatus))

	if err := s.store.UpdateNotification(ctx, b.ID, b.NotificationStatus, b.NotificationError); err != nil {
		s.logger.Error("storing notification status failed", zap.String("booking", b.ID), zap.Error(err))
	}
}

func (s *Service) publishCalendar(ctx context.Context, class Class, b *Booking) {
	if s.calendar == nil {
		return
	}
	_, err := s.calendar.Publish(ctx, calendar.Entry{
		BookingID:         b.ID,
		ClassName:         class.Name,
		InstructorName:    class.Instructor,
		InstructorEmail:   class.InstructorEmail,
		StudentName:       b.UserName,
		StudentEmail:      b.UserEmail,
		BookingDate:       b.BookingDate,
		StartTime:         b.StartTime,
		EndTime:           b.EndTime,
		BookingType:       b.BookingType,
		RecurrenceEndDate: b.RecurrenceEndDate,
		Notes:             b.Notes,
	})
	if err != nil {
		s.logger.Warn("calendar sync failed", zap.String("booking", b.ID), zap.Error(err))
	}
}

func (s *Service) MyBookings(ctx context.Context, user booking.User) ([]booking.BookingRecord, error) {
	list, err := s.store.ListBookingsForUser(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	out := make([]booking.BookingRecord, 0, len(list))
	for _, b := range list {
		out = append(out, b.Record())
	}
	return out, nil
}

func (s *Service) Cancel(ctx context.Context, user booking.User, id string) error {
	if err := s.store.CancelBooking(ctx, id, user.Email); err != nil {
		return err
	}
	s.logger.Info("booking cancelled", zap.String("booking", id))
	return nil
}

// Validate checks req against class the same way the wizard builds it and
// returns the dates the booking occupies.
func Validate(class Class, req booking.SubmitRequest, now time.Time) ([]string, error) {
	t, ok := schedule.ParseBookingType(string(req.BookingType))
	if !ok {
		return nil, &ValidationError{Field: "bookingType", Reason: "must be PUNTUAL or RECURRENTE"}
	}
	if !slices.Contains(schedule.ValidDates(class.WeekDay, t, now), req.BookingDate) {
		return nil, &ValidationError{Field: "bookingDate", Reason: "not a bookable date for this class"}
	}
	if !slices.Contains(schedule.ValidStartTimes(class.StartTime, class.EndTime), req.StartTime) {
		return nil, &ValidationError{Field: "startTime", Reason: "not a bookable start time for this class"}
	}
	if req.EndTime != schedule.EndTime(req.StartTime) {
		return nil, &ValidationError{Field: "endTime", Reason: "must be two hours after startTime"}
	}

	if t == schedule.Puntual {
		if req.RecurrenceEndDate != nil && *req.RecurrenceEndDate != "" {
			return nil, &ValidationError{Field: "recurrenceEndDate", Reason: "only allowed for RECURRENTE"}
		}
		return []string{req.BookingDate}, nil
	}

	want := schedule.RecurrenceEndDate(req.BookingDate, now)
	if req.RecurrenceEndDate == nil || *req.RecurrenceEndDate != want {
		return nil, &ValidationError{Field: "recurrenceEndDate", Reason: "must be " + want}
	}
	return schedule.Occurrences(req.BookingDate, want), nil
}
