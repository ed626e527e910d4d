// Package calendar mirrors confirmed bookings onto the instructors' Google
// Calendar.
package calendar

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"ceramica-booking/internal/logging"
	"ceramica-booking/internal/schedule"
)

const defaultCalendarID = "primary"

type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	CalendarID   string
	Timezone     string
}

func (c Config) configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// Entry is one booking to put on the calendar.
type Entry struct {
	BookingID         string
	ClassName         string
	InstructorName    string
	InstructorEmail   string
	StudentName       string
	StudentEmail      string
	BookingDate       string
	StartTime         string
	EndTime           string
	BookingType       schedule.BookingType
	RecurrenceEndDate string
	Notes             string
}

// Publisher inserts calendar events.
type Publisher struct {
	svc        *gcal.Service
	calendarID string
	tz         string
	logger     *zap.Logger
}

// NewPublisher authenticates with the stored refresh token. It returns nil
// when the calendar is not configured.
func NewPublisher(ctx context.Context, cfg Config, logger *zap.Logger) (*Publisher, error) {
	if !cfg.configured() {
		return nil, nil
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gcal.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
	ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}
	return NewPublisherWithService(svc, cfg, logger), nil
}

func NewPublisherWithService(svc *gcal.Service, cfg Config, logger *zap.Logger) *Publisher {
	if cfg.CalendarID == "" {
		cfg.CalendarID = defaultCalendarID
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	return &Publisher{svc: svc, calendarID: cfg.CalendarID, tz: cfg.Timezone, logger: logging.OrNop(logger)}
}

// Publish creates the event for e and returns its calendar ID.
func (p *Publisher) Publish(ctx context.Context, e Entry) (string, error) {
	ev := BuildEvent(e, p.tz)
	created, err := p.svc.Events.Insert(p.calendarID, ev).SendUpdates("none").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	p.logger.Info("calendar event created", zap.String("booking", e.BookingID), zap.String("event", created.Id))
	return created.Id, nil
}

// BuildEvent maps a booking onto a calendar event in timezone tz. The
// instructor and the student are attendees. Weekly bookings repeat until the
// end of their recurrence date.
func BuildEvent(e Entry, tz string) *gcal.Event {
	student := e.StudentName
	if student == "" {
		student = e.StudentEmail
	}
	ev := &gcal.Event{
		Summary:     fmt.Sprintf("%s · %s", e.ClassName, student),
		Description: e.Notes,
		Start:       &gcal.EventDateTime{DateTime: e.BookingDate + "T" + e.StartTime + ":00", TimeZone: tz},
		End:         &gcal.EventDateTime{DateTime: e.BookingDate + "T" + e.EndTime + ":00", TimeZone: tz},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{"bookingId": e.BookingID},
		},
	}
	if e.InstructorEmail != "" {
		ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: e.InstructorEmail, DisplayName: e.InstructorName})
	}
	if e.StudentEmail != "" {
		ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: e.StudentEmail, DisplayName: e.StudentName})
	}
	if e.BookingType == schedule.Recurrente && e.RecurrenceEndDate != "" {
		if until, err := time.Parse(schedule.DateLayout, e.RecurrenceEndDate); err == nil {
			ev.Recurrence = []string{"RRULE:FREQ=WEEKLY;UNTIL=" + until.Format("20060102") + "T235959Z"}
		}
	}
	return ev
}
