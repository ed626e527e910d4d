package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
}

var (
	torno    = ClassSchedule{ID: "c1", Name: "Torno", Instructor: "Ana", WeekDay: "Lunes", StartTime: "10:00", EndTime: "13:00"}
	corto    = ClassSchedule{ID: "c2", Name: "Torno exprés", Instructor: "Ana", WeekDay: "Lunes", StartTime: "10:00", EndTime: "11:30"}
	modelado = ClassSchedule{ID: "c3", Name: "Modelado", Instructor: "Luis", WeekDay: "Jueves", StartTime: "17:00", EndTime: "20:00"}
)

var member = Viewer{User: &User{Name: "Marta", Email: "marta@example.com"}}

func newWizard() *Wizard {
	return New([]ClassSchedule{torno, corto, modelado}, fixedNow)
}

func TestNewWizardStartsEmpty(t *testing.T) {
	w := newWizard()
	assert.Equal(t, StepSelectClass, w.Step())
	assert.Equal(t, EmptyDraft(), w.Draft())
	assert.False(t, w.CanNext(member))
	assert.False(t, w.CanPrevious())
	assert.Empty(t, w.Slots())
}

func TestScenarioTornoSlots(t *testing.T) {
	w := newWizard()
	require.NoError(t, w.SelectClass("c1"))
	require.NoError(t, w.SetBookingType(Puntual))

	var starts []string
	for _, s := range w.Slots() {
		starts = append(starts, s.StartTime)
		assert.True(t, s.Available)
	}
	assert.Equal(t, []string{"10:00", "10:30", "11:00"}, starts)
}

func TestScenarioShortWindowHasNoSlots(t *testing.T) {
	w := newWizard()
	require.NoError(t, w.SelectClass("c2"))
	assert.Empty(t, w.Slots())
	require.NoError(t, w.SetBookingDate("2026-10-19"))
	assert.ErrorIs(t, w.SetStartTime("10:00"), ErrSlotUnavailable)
}

func TestSelectClassResetsDateAndTime(t *testing.T) {
	w := newWizard()
	require.NoError(t, w.SelectClass("c1"))
	require.NoError(t, w.SetBookingDate("2026-10-19"))
	require.NoError(t, w.SetStartTime("10:30"))

	require.NoError(t, w.SelectClass("c3"))
	d := w.Draft()
	assert.Equal(t, "c3", d.ClassID)
	assert.Empty(t, d.BookingDate)
	assert.Empty(t, d.StartTime)
	assert.Empty(t, d.EndTime)
}

func TestSelectUnknownClass(t *testing.T) {
	w := newWizard()
	assert.ErrorIs(t, w.SelectClass("nope"), ErrUnknownClass)
	assert.ErrorIs(t, w.SelectClass(""), ErrUnknownClass)
}

func TestSetBookingDateValidatesWeekday(t *testing.T) {
	w := newWizard()
	assert.ErrorIs(t, w.SetBookingDate("2026-10-19"), ErrNoClass)

	require.NoError(t, w.SelectClass("c1"))
	assert.ErrorIs(t, w.SetBookingDate("2026-10-20"), ErrDateUnavailable)
	assert.ErrorIs(t, w.SetBookingDate("2026-10-12"), ErrDateUnavailable, "past monday")
	assert.NoError(t, w.SetBookingDate("2026-11-30"))
}

func TestSetStartTimeDerivesEndTime(t *testing.T) {
	w := newWizard()
	require.NoError(t, w.SelectClass("c1"))
	require.NoError(t, w.SetBookingDate("2026-10-19"))
	require.NoError(t, w.SetStartTime("11:00"))
	assert.Equal(t, "13:00", w.Draft().EndTime)
	assert.ErrorIs(t, w.SetStartTime("11:30"), ErrSlotUnavailable)
}

func TestRecurrenteDerivesEndOfMonth(t *testing.T) {
	w := newWizard()
	require.NoError(t, w.SelectClass("c1"))
	require.NoError(t, w.SetBookingType(Recurrente))
	assert.Equal(t, "2026-10-31", w.Draft().RecurrenceEndDate)

	require.NoError(t, w.SetBookingDate("2026-10-26"))
	require.NoError(t, w.SetStartTime("10:00"))
	assert.Equal(t, "2026-10-31", w.Draft().RecurrenceEndDate)
	assert.True(t, w.IsStepValid(StepSelectDateTime, member))

	require.NoError(t, w.SetBookingType(Puntual))
	assert.Empty(t, w.Draft().RecurrenceEndDate)
	assert.Equal(t, "2026-10-26", w.Draft().BookingDate, "date still inside the punctual window")
}

func TestSwitchingToRecurrenteDropsDateOutsideWindow(t *testing.T) {
	w := newWizard()
	require.NoError(t, w.SelectClass("c1"))
	require.NoError(t, w.SetBookingDate("2026-11-09"))
	require.NoError(t, w.SetStartTime("10:00"))

	require.NoError(t, w.SetBookingType(Recurrente))
	assert.Empty(t, w.Draft().BookingDate)
	assert.Empty(t, w.Draft().StartTime)
	assert.ErrorIs(t, w.SetBookingType("SEMANAL"), ErrInvalidType)
}

func TestStepNavigation(t *testing.T) {
	w := newWizard()
	assert.ErrorIs(t, w.Previous(), ErrFirstStep)
	assert.ErrorIs(t, w.Next(member), ErrStepIncomplete)

	require.NoError(t, w.SelectClass("c1"))
	require.NoError(t, w.Next(member))
	assert.Equal(t, StepSelectDateTime, w.Step())
	assert.ErrorIs(t, w.Next(member), ErrStepIncomplete)

	require.NoError(t, w.SetBookingDate("2026-10-19"))
	require.NoError(t, w.SetStartTime("10:30"))
	require.NoError(t, w.Next(member))
	assert.Equal(t, StepReview, w.Step())
	assert.ErrorIs(t, w.Next(member), ErrLastStep)
	assert.True(t, w.CanSubmit(member))

	require.NoError(t, w.Previous())
	assert.Equal(t, StepSelectDateTime, w.Step())
	assert.Equal(t, "10:30", w.Draft().StartTime, "going back keeps the selection")
}

func TestReviewRequiresAuthentication(t *testing.T) {
	w := newWizard()
	require.NoError(t, w.SelectClass("c1"))
	require.NoError(t, w.Next(Viewer{}))
	require.NoError(t, w.SetBookingDate("2026-10-19"))
	require.NoError(t, w.SetStartTime("10:00"))
	require.NoError(t, w.Next(Viewer{}))

	assert.False(t, w.CanSubmit(Viewer{}))
	assert.False(t, w.CanSubmit(Viewer{User: &User{Name: "sin correo"}}))
	assert.True(t, w.CanSubmit(member))
}

func TestStepValidityIsStable(t *testing.T) {
	w := newWizard()
	require.NoError(t, w.SelectClass("c1"))
	require.NoError(t, w.SetBookingDate("2026-10-19"))
	require.NoError(t, w.SetStartTime("10:00"))

	for i := 0; i < 3; i++ {
		w.SetNotes("traigo mi delantal")
		_ = w.Next(member)
		_ = w.Previous()
		assert.True(t, w.IsStepValid(StepSelectClass, member))
		assert.True(t, w.IsStepValid(StepSelectDateTime, member))
	}
}

func TestRequestPayload(t *testing.T) {
	w := newWizard()
	require.NoError(t, w.SelectClass("c3"))
	require.NoError(t, w.SetBookingType(Recurrente))
	require.NoError(t, w.SetBookingDate("2026-10-22"))
	require.NoError(t, w.SetStartTime("18:00"))
	w.SetNotes("primera vez")

	req := w.Request()
	assert.Equal(t, "c3", req.ClassEntity.ID)
	assert.Equal(t, "2026-10-22", req.BookingDate)
	assert.Equal(t, "18:00", req.StartTime)
	assert.Equal(t, "20:00", req.EndTime)
	assert.Equal(t, Recurrente, req.BookingType)
	require.NotNil(t, req.RecurrenceEndDate)
	assert.Equal(t, "2026-10-31", *req.RecurrenceEndDate)
	assert.Equal(t, "primera vez", req.Notes)

	require.NoError(t, w.SetBookingType(Puntual))
	assert.Nil(t, w.Request().RecurrenceEndDate)
}

func TestRestoreRecomputesSlots(t *testing.T) {
	draft := Draft{ClassID: "c1", BookingDate: "2026-10-19", StartTime: "10:30", EndTime: "12:30"}
	w := Restore(StepReview, draft, []ClassSchedule{torno}, fixedNow)
	assert.Equal(t, StepReview, w.Step())
	assert.Equal(t, Puntual, w.Draft().BookingType)
	assert.Len(t, w.Slots(), 3)

	w = Restore(Step(9), draft, nil, fixedNow)
	assert.Equal(t, StepSelectClass, w.Step())
	assert.Empty(t, w.Slots())
}

func TestReset(t *testing.T) {
	w := newWizard()
	require.NoError(t, w.SelectClass("c1"))
	require.NoError(t, w.Next(member))
	w.Reset()
	assert.Equal(t, StepSelectClass, w.Step())
	assert.Equal(t, EmptyDraft(), w.Draft())
	assert.Empty(t, w.Slots())
}
