package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Thursday.
var today = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Weekday
		ok   bool
	}{
		{"spanish", "Lunes", time.Monday, true},
		{"accented", "Miércoles", time.Wednesday, true},
		{"unaccented", "miercoles", time.Wednesday, true},
		{"upper", "SÁBADO", time.Saturday, true},
		{"english", "friday", time.Friday, true},
		{"sunday in table", "Domingo", time.Sunday, true},
		{"padded", "  martes ", time.Tuesday, true},
		{"unknown", "Funday", 0, false},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseWeekday(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestBookableWeekdaysExcludesSunday(t *testing.T) {
	days := BookableWeekdays()
	require.Len(t, days, 6)
	assert.NotContains(t, days, time.Sunday)
	assert.Equal(t, time.Monday, days[0])
	assert.Equal(t, time.Saturday, days[5])
}

func TestValidDatesPuntualCoversTwoMonths(t *testing.T) {
	got := ValidDates("Lunes", Puntual, today)
	assert.Equal(t, []string{
		"2026-10-19", "2026-10-26",
		"2026-11-02", "2026-11-09", "2026-11-16", "2026-11-23", "2026-11-30",
	}, got)
}

func TestValidDatesRecurrenteCoversCurrentMonth(t *testing.T) {
	got := ValidDates("Lunes", Recurrente, today)
	assert.Equal(t, []string{"2026-10-19", "2026-10-26"}, got)
}

func TestValidDatesIncludesToday(t *testing.T) {
	got := ValidDates("Jueves", Recurrente, today)
	assert.Equal(t, []string{"2026-10-15", "2026-10-22", "2026-10-29"}, got)
}

func TestValidDatesWrapsYear(t *testing.T) {
	dec := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	got := ValidDates("Sábado", Puntual, dec)
	assert.Equal(t, []string{
		"2026-12-05", "2026-12-12", "2026-12-19", "2026-12-26",
		"2027-01-02", "2027-01-09", "2027-01-16", "2027-01-23", "2027-01-30",
	}, got)
}

func TestValidDatesStopsAtShortMonth(t *testing.T) {
	// January 31st: the scan of February must not spill into March.
	jan := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	got := ValidDates("Sabado", Puntual, jan)
	require.NotEmpty(t, got)
	assert.Equal(t, "2026-01-31", got[0])
	assert.Equal(t, "2026-02-28", got[len(got)-1])
}

func TestValidDatesUnknownInput(t *testing.T) {
	assert.Empty(t, ValidDates("", Puntual, today))
	assert.Empty(t, ValidDates("Funday", Recurrente, today))
	assert.Empty(t, ValidDates("Lunes", BookingType("OTRO"), today))
}

func TestValidDatesProperties(t *testing.T) {
	floor := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	for _, name := range []string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"} {
		want, _ := ParseWeekday(name)
		punctual := ValidDates(name, Puntual, today)
		recurrent := ValidDates(name, Recurrente, today)

		assert.LessOrEqual(t, len(recurrent), len(punctual), name)
		assert.Equal(t, punctual[:len(recurrent)], recurrent, name)
		for _, s := range punctual {
			d, err := time.Parse(DateLayout, s)
			require.NoError(t, err)
			assert.Equal(t, want, d.Weekday(), s)
			assert.False(t, d.Before(floor), s)
		}
		assert.Equal(t, punctual, ValidDates(name, Puntual, today), "repeatable")
	}
}

func TestValidStartTimes(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		want       []string
	}{
		{"last slot fits exactly", "10:00", "13:00", []string{"10:00", "10:30", "11:00"}},
		{"window too short", "10:00", "11:30", nil},
		{"window of one session", "16:00", "18:00", []string{"16:00"}},
		{"unaligned start", "10:15", "13:00", []string{"10:30", "11:00"}},
		{"seconds suffix", "09:00:00", "11:30:00", []string{"09:00", "09:30"}},
		{"inverted", "18:00", "10:00", nil},
		{"garbage", "xx", "13:00", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidStartTimes(tt.start, tt.end)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, ValidStartTimes(tt.start, tt.end))
		})
	}
}

func TestValidStartTimesFitWindow(t *testing.T) {
	windows := [][2]string{{"09:00", "14:00"}, {"10:30", "12:30"}, {"17:00", "21:00"}}
	for _, w := range windows {
		start, _ := minutesOf(w[0])
		end, _ := minutesOf(w[1])
		for _, s := range ValidStartTimes(w[0], w[1]) {
			m, err := minutesOf(s)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, m, start)
			assert.LessOrEqual(t, m+120, end)
		}
	}
}

func TestEndTime(t *testing.T) {
	assert.Equal(t, "16:00", EndTime("14:00"))
	assert.Equal(t, "12:30", EndTime("10:30"))
	assert.Equal(t, "01:00", EndTime("23:00"))
	assert.Equal(t, "", EndTime("nope"))
}

func TestRecurrenceEndDate(t *testing.T) {
	assert.Equal(t, "2026-10-31", RecurrenceEndDate("", today))
	assert.Equal(t, "2026-11-30", RecurrenceEndDate("2026-11-02", today))
	assert.Equal(t, "2028-02-29", RecurrenceEndDate("2028-02-07", today))
	assert.Equal(t, "2026-10-31", RecurrenceEndDate("not-a-date", today))
}

func TestAvailableSlots(t *testing.T) {
	slots := AvailableSlots("10:00", "13:00")
	require.Len(t, slots, 3)
	assert.Equal(t, AvailableSlot{StartTime: "11:00", EndTime: "13:00", Available: true, DisplayText: "11:00 - 13:00"}, slots[2])

	assert.Empty(t, AvailableSlots("10:00", "11:30"))
}

func TestOccurrences(t *testing.T) {
	assert.Equal(t, []string{"2026-10-19", "2026-10-26"}, Occurrences("2026-10-19", "2026-10-31"))
	assert.Equal(t, []string{"2026-10-19"}, Occurrences("2026-10-19", ""))
	assert.Nil(t, Occurrences("bad", "2026-10-31"))
}

func TestParseBookingType(t *testing.T) {
	bt, ok := ParseBookingType("recurrente")
	assert.True(t, ok)
	assert.Equal(t, Recurrente, bt)

	_, ok = ParseBookingType("weekly")
	assert.False(t, ok)
}

func TestWeekdayNameRoundTrips(t *testing.T) {
	for _, d := range BookableWeekdays() {
		got, ok := ParseWeekday(WeekdayName(d))
		assert.True(t, ok, d.String())
		assert.Equal(t, d, got)
	}
	assert.Equal(t, "Miércoles", WeekdayName(time.Wednesday))
}
