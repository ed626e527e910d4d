// Package booking holds the booking draft and the three-step wizard that
// fills it: pick a class, pick a date and time, review and submit.
package booking

import (
	"errors"
	"slices"
	"time"

	"ceramica-booking/internal/schedule"
)

type Step int

const (
	StepSelectClass    Step = 1
	StepSelectDateTime Step = 2
	StepReview         Step = 3
)

var (
	ErrUnknownClass    = errors.New("unknown class")
	ErrNoClass         = errors.New("no class selected")
	ErrDateUnavailable = errors.New("date not available for class")
	ErrSlotUnavailable = errors.New("start time not available for class")
	ErrInvalidType     = errors.New("invalid booking type")
	ErrStepIncomplete  = errors.New("current step is incomplete")
	ErrFirstStep       = errors.New("already at first step")
	ErrLastStep        = errors.New("already at last step")
)

// Wizard is the draft state machine of one booking session. It is not safe
// for concurrent use.
type Wizard struct {
	step    Step
	draft   Draft
	classes map[string]ClassSchedule
	slots   []schedule.AvailableSlot
	now     func() time.Time
}

// New opens a wizard at step one with an empty draft.
func New(classes []ClassSchedule, now func() time.Time) *Wizard {
	return Restore(StepSelectClass, EmptyDraft(), classes, now)
}

// Restore rebuilds a wizard from a saved step and draft. Slots are derived
// state and get recomputed.
func Restore(step Step, draft Draft, classes []ClassSchedule, now func() time.Time) *Wizard {
	if now == nil {
		now = time.Now
	}
	if step < StepSelectClass || step > StepReview {
		step = StepSelectClass
	}
	if draft.BookingType == "" {
		draft.BookingType = Puntual
	}
	w := &Wizard{
		step:    step,
		draft:   draft,
		classes: make(map[string]ClassSchedule, len(classes)),
		now:     now,
	}
	for _, c := range classes {
		w.classes[c.ID] = c
	}
	w.recomputeSlots()
	return w
}

func (w *Wizard) Step() Step   { return w.step }
func (w *Wizard) Draft() Draft { return w.draft }

// Slots returns the sessions offered for the selected class.
func (w *Wizard) Slots() []schedule.AvailableSlot {
	out := make([]schedule.AvailableSlot, len(w.slots))
	copy(out, w.slots)
	return out
}

// SelectedClass returns the class the draft points at.
func (w *Wizard) SelectedClass() (ClassSchedule, bool) {
	c, ok := w.classes[w.draft.ClassID]
	return c, ok && w.draft.ClassID != ""
}

// ValidDates lists the dates selectable for the current class and booking type.
func (w *Wizard) ValidDates() []string {
	c, ok := w.SelectedClass()
	if !ok {
		return nil
	}
	return schedule.ValidDates(c.WeekDay, w.draft.BookingType, w.now())
}

// SelectClass points the draft at another class. Slots are class specific so
// any chosen date and time are dropped.
func (w *Wizard) SelectClass(id string) error {
	if _, ok := w.classes[id]; !ok || id == "" {
		return ErrUnknownClass
	}
	w.draft.ClassID = id
	w.draft.BookingDate = ""
	w.draft.StartTime = ""
	w.draft.EndTime = ""
	w.refreshRecurrence()
	w.recomputeSlots()
	return nil
}

// SetBookingType switches between a one-off and a weekly booking. A chosen
// date that falls outside the new window is cleared.
func (w *Wizard) SetBookingType(t BookingType) error {
	if t != Puntual && t != Recurrente {
		return ErrInvalidType
	}
	w.draft.BookingType = t
	if w.draft.BookingDate != "" && !slices.Contains(w.ValidDates(), w.draft.BookingDate) {
		w.draft.BookingDate = ""
		w.draft.StartTime = ""
		w.draft.EndTime = ""
		w.recomputeSlots()
	}
	w.refreshRecurrence()
	return nil
}

// SetBookingDate picks one of ValidDates.
func (w *Wizard) SetBookingDate(date string) error {
	if _, ok := w.SelectedClass(); !ok {
		return ErrNoClass
	}
	if !slices.Contains(w.ValidDates(), date) {
		return ErrDateUnavailable
	}
	if date != w.draft.BookingDate {
		w.draft.BookingDate = date
		w.draft.StartTime = ""
		w.draft.EndTime = ""
		w.recomputeSlots()
	}
	w.refreshRecurrence()
	return nil
}

// SetStartTime picks one of Slots; the end time comes from the slot.
func (w *Wizard) SetStartTime(start string) error {
	if _, ok := w.SelectedClass(); !ok {
		return ErrNoClass
	}
	for _, s := range w.slots {
		if s.StartTime == start {
			w.draft.StartTime = s.StartTime
			w.draft.EndTime = s.EndTime
			return nil
		}
	}
	return ErrSlotUnavailable
}

func (w *Wizard) SetNotes(notes string) {
	w.draft.Notes = notes
}

// IsStepValid reports whether the exit condition of step holds.
func (w *Wizard) IsStepValid(step Step, viewer Viewer) bool {
	d := w.draft
	switch step {
	case StepSelectClass:
		return d.ClassID != ""
	case StepSelectDateTime:
		if d.BookingDate == "" || d.StartTime == "" {
			return false
		}
		if d.BookingType == Recurrente && d.RecurrenceEndDate == "" {
			return false
		}
		return true
	case StepReview:
		return w.IsStepValid(StepSelectClass, viewer) &&
			w.IsStepValid(StepSelectDateTime, viewer) &&
			viewer.Authenticated()
	}
	return false
}

func (w *Wizard) CanNext(viewer Viewer) bool {
	return w.step < StepReview && w.IsStepValid(w.step, viewer)
}

func (w *Wizard) CanPrevious() bool {
	return w.step > StepSelectClass
}

// CanSubmit holds on the review step once every step is valid.
func (w *Wizard) CanSubmit(viewer Viewer) bool {
	return w.step == StepReview && w.IsStepValid(StepReview, viewer)
}

func (w *Wizard) Next(viewer Viewer) error {
	if w.step >= StepReview {
		return ErrLastStep
	}
	if !w.IsStepValid(w.step, viewer) {
		return ErrStepIncomplete
	}
	w.step++
	return nil
}

func (w *Wizard) Previous() error {
	if !w.CanPrevious() {
		return ErrFirstStep
	}
	w.step--
	return nil
}

// Reset discards the draft and goes back to step one.
func (w *Wizard) Reset() {
	w.step = StepSelectClass
	w.draft = EmptyDraft()
	w.slots = nil
}

// Request builds the submission payload from the draft.
func (w *Wizard) Request() SubmitRequest {
	d := w.draft
	req := SubmitRequest{
		ClassEntity: ClassRef{ID: d.ClassID},
		BookingDate: d.BookingDate,
		StartTime:   d.StartTime,
		EndTime:     d.EndTime,
		BookingType: d.BookingType,
		Notes:       d.Notes,
	}
	for _, s := range w.slots {
		if s.StartTime == d.StartTime {
			req.EndTime = s.EndTime
			break
		}
	}
	if d.BookingType == Recurrente && d.RecurrenceEndDate != "" {
		end := d.RecurrenceEndDate
		req.RecurrenceEndDate = &end
	}
	return req
}

func (w *Wizard) refreshRecurrence() {
	if w.draft.BookingType != Recurrente {
		w.draft.RecurrenceEndDate = ""
		return
	}
	w.draft.RecurrenceEndDate = schedule.RecurrenceEndDate(w.draft.BookingDate, w.now())
}

func (w *Wizard) recomputeSlots() {
	c, ok := w.SelectedClass()
	if !ok {
		w.slots = nil
		return
	}
	w.slots = schedule.AvailableSlots(c.StartTime, c.EndTime)
}
