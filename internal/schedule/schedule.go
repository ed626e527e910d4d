// Package schedule computes the dates and start times a customer may pick for a
// recurring weekly class. Every function is pure: the current day is passed in
// and invalid input produces an empty result instead of an error.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	// SessionLength is the fixed duration of every bookable session.
	SessionLength = 120 * time.Minute
	// SlotStep is the spacing between consecutive start times.
	SlotStep = 30 * time.Minute
)

// BookingType tells whether a booking happens once or repeats weekly.
type BookingType string

const (
	Puntual    BookingType = "PUNTUAL"
	Recurrente BookingType = "RECURRENTE"
)

// ParseBookingType accepts the canonical names case-insensitively.
func ParseBookingType(s string) (BookingType, bool) {
	switch BookingType(strings.ToUpper(strings.TrimSpace(s))) {
	case Puntual:
		return Puntual, true
	case Recurrente:
		return Recurrente, true
	}
	return "", false
}

// windowMonths is how many calendar months (the current one included) are offered.
func (t BookingType) windowMonths() int {
	switch t {
	case Puntual:
		return 2
	case Recurrente:
		return 1
	}
	return 0
}

// AvailableSlot is a derived 2-hour session inside a class window.
type AvailableSlot struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Available   bool   `json:"available"`
	DisplayText string `json:"displayText"`
}

var weekdays = map[string]time.Weekday{
	"domingo":   time.Sunday,
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var accentFolder = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u")

// ParseWeekday maps a Spanish or English day name to its time.Weekday.
func ParseWeekday(name string) (time.Weekday, bool) {
	key := accentFolder.Replace(strings.ToLower(strings.TrimSpace(name)))
	d, ok := weekdays[key]
	return d, ok
}

// BookableWeekdays lists the days the workshop opens. Sunday is never offered.
func BookableWeekdays() []time.Weekday {
	return []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday,
		time.Thursday, time.Friday, time.Saturday,
	}
}

var weekdayNames = [...]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

// WeekdayName is the Spanish display name of d.
func WeekdayName(d time.Weekday) string {
	return weekdayNames[d]
}

// ValidDates lists every date matching weekDay from today until the end of
// the booking window: this month and the next for PUNTUAL, this month only for
// RECURRENTE.
func ValidDates(weekDay string, t BookingType, today time.Time) []string {
	day, ok := ParseWeekday(weekDay)
	if !ok {
		return nil
	}
	months := t.windowMonths()
	if months == 0 {
		return nil
	}

	y, m, d := today.Date()
	floor := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	var out []string
	for offset := 0; offset < months; offset++ {
		target := time.Month((int(m)-1+offset)%12 + 1)
		for dom := 1; dom <= 31; dom++ {
			// time.Date normalizes overflow, e.g. 31 April becomes 1 May.
			date := time.Date(y, m+time.Month(offset), dom, 0, 0, 0, 0, time.UTC)
			if date.Month() != target {
				break
			}
			if date.Weekday() == day && !date.Before(floor) {
				out = append(out, date.Format(DateLayout))
			}
		}
	}
	return out
}

// ValidStartTimes returns the half-hour aligned start times that leave room for
// a full session before the class window closes.
func ValidStartTimes(start, end string) []string {
	startMin, err := minutesOf(start)
	if err != nil {
		return nil
	}
	endMin, err := minutesOf(end)
	if err != nil {
		return nil
	}
	step := int(SlotStep / time.Minute)
	session := int(SessionLength / time.Minute)

	first := (startMin + step - 1) / step * step
	var out []string
	for t := first; t <= endMin-session; t += step {
		out = append(out, formatMinutes(t))
	}
	return out
}

// EndTime adds one session length to start, wrapping at midnight.
func EndTime(start string) string {
	m, err := minutesOf(start)
	if err != nil {
		return ""
	}
	return formatMinutes((m + int(SessionLength/time.Minute)) % (24 * 60))
}

// RecurrenceEndDate is the last day of the month holding bookingDate, or of
// today's month when no date has been chosen yet.
func RecurrenceEndDate(bookingDate string, today time.Time) string {
	ref := today
	if d, err := time.Parse(DateLayout, bookingDate); err == nil {
		ref = d
	}
	y, m, _ := ref.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Format(DateLayout)
}

// AvailableSlots expands a class window into bookable sessions. Capacity is
// only known to the reservation service, so every slot is listed as available.
func AvailableSlots(start, end string) []AvailableSlot {
	starts := ValidStartTimes(start, end)
	if len(starts) == 0 {
		return nil
	}
	out := make([]AvailableSlot, 0, len(starts))
	for _, s := range starts {
		e := EndTime(s)
		out = append(out, AvailableSlot{
			StartTime:   s,
			EndTime:     e,
			Available:   true,
			DisplayText: fmt.Sprintf("%s - %s", s, e),
		})
	}
	return out
}

// Occurrences lists the weekly repetitions of bookingDate up to and including
// until. An empty until yields just bookingDate.
func Occurrences(bookingDate, until string) []string {
	first, err := time.Parse(DateLayout, bookingDate)
	if err != nil {
		return nil
	}
	if until == "" {
		return []string{bookingDate}
	}
	last, err := time.Parse(DateLayout, until)
	if err != nil {
		return nil
	}
	var out []string
	for d := first; !d.After(last); d = d.AddDate(0, 0, 7) {
		out = append(out, d.Format(DateLayout))
	}
	return out
}

func minutesOf(s string) (int, error) {
	tt, err := parseHHMM(s)
	if err != nil {
		return 0, err
	}
	return tt.Hour()*60 + tt.Minute(), nil
}

func parseHHMM(s string) (time.Time, error) {
	// Take first 5 chars "HH:MM"
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("invalid time string: %s", s)
	}
	s = s[:5] // "09:00:00" -> "09:00"
	return time.Parse(TimeLayout, s)
}

func formatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
