// Package wizard hosts booking wizard sessions for the web client: it keeps
// each session's draft between requests, submits it to the reservation
// service and turns the outcome into banners and notices.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ceramica-booking/internal/booking"
	"ceramica-booking/internal/logging"
	"ceramica-booking/internal/metrics"
	"ceramica-booking/internal/reservations"
	"ceramica-booking/internal/schedule"
)

const (
	NoSlotsMessage     = "No hay horarios disponibles"
	NoAvailabilityText = "No hay disponibilidad en ese horario. Por favor, elige otro horario."
	SignInRequiredText = "Inicia sesión para confirmar tu reserva."
	SuccessText        = "¡Reserva realizada con éxito!"

	notificationSentText    = "Hemos avisado al instructor de tu reserva."
	notificationSendingText = "Estamos avisando al instructor de tu reserva."
	notificationFailedText  = "No pudimos avisar al instructor"

	DefaultSuccessCooldown = 500 * time.Millisecond
	DefaultSubmitLockTTL   = 30 * time.Second
)

var (
	ErrNotAuthenticated = errors.New("sign in required to submit a booking")
	ErrSubmitInFlight   = errors.New("a submission is already in progress")
)

// Reservations is the part of the reservation service the wizard talks to.
type Reservations interface {
	FetchClassGrid(ctx context.Context) ([]booking.ClassSchedule, error)
	Submit(ctx context.Context, token string, req booking.SubmitRequest) (*booking.BookingRecord, error)
}

type Options struct {
	SuccessCooldown time.Duration
	SubmitLockTTL   time.Duration
	Now             func() time.Time
	Metrics         *metrics.WizardMetrics
	Logger          *zap.Logger
}

type Controller struct {
	api     Reservations
	store   Store
	gate    Gate
	notices Notifier
	opts    Options
	logger  *zap.Logger
}

func NewController(api Reservations, store Store, gate Gate, notices Notifier, opts Options) *Controller {
	if opts.SuccessCooldown <= 0 {
		opts.SuccessCooldown = DefaultSuccessCooldown
	}
	if opts.SubmitLockTTL <= 0 {
		opts.SubmitLockTTL = DefaultSubmitLockTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		api:     api,
		store:   store,
		gate:    gate,
		notices: notices,
		opts:    opts,
		logger:  logging.OrNop(opts.Logger),
	}
}

// GridDay is one column of the weekly class grid.
type GridDay struct {
	Day     string                  `json:"day"`
	Classes []booking.ClassSchedule `json:"classes"`
}

// View is everything the client needs to render a session.
type View struct {
	ID             string                   `json:"id"`
	Step           booking.Step             `json:"step"`
	Draft          booking.Draft            `json:"draft"`
	Classes        []booking.ClassSchedule  `json:"classes"`
	Grid           []GridDay                `json:"grid"`
	SelectedClass  *booking.ClassSchedule   `json:"selectedClass,omitempty"`
	ValidDates     []string                 `json:"validDates"`
	Slots          []schedule.AvailableSlot `json:"slots"`
	NoSlotsMessage string                   `json:"noSlotsMessage,omitempty"`
	CanNext        bool                     `json:"canNext"`
	CanPrevious    bool                     `json:"canPrevious"`
	CanSubmit      bool                     `json:"canSubmit"`
	Loading        bool                     `json:"loading"`
	Banner         string                   `json:"banner,omitempty"`
	Advisory       string                   `json:"advisory,omitempty"`
	AuthNotice     string                   `json:"authNotice,omitempty"`
	User           *booking.User            `json:"user,omitempty"`
}

// Open starts a session. A class grid that cannot be fetched leaves the
// session with no classes to pick.
func (c *Controller) Open(ctx context.Context) (string, error) {
	classes, err := c.api.FetchClassGrid(ctx)
	if err != nil {
		c.logger.Warn("class grid unavailable", zap.Error(err))
		c.opts.Metrics.ObserveClassGrid("error")
		classes = nil
	} else {
		c.opts.Metrics.ObserveClassGrid("ok")
	}

	st := &State{
		ID:        uuid.NewString(),
		Step:      booking.StepSelectClass,
		Draft:     booking.EmptyDraft(),
		Classes:   bookable(classes),
		CreatedAt: c.opts.Now(),
	}
	if err := c.store.Save(ctx, st); err != nil {
		return "", err
	}
	c.logger.Info("wizard session opened", zap.String("session", st.ID), zap.Int("classes", len(st.Classes)))
	return st.ID, nil
}

// bookable drops classes on days the workshop does not take bookings.
func bookable(classes []booking.ClassSchedule) []booking.ClassSchedule {
	days := make(map[time.Weekday]bool)
	for _, d := range schedule.BookableWeekdays() {
		days[d] = true
	}
	out := make([]booking.ClassSchedule, 0, len(classes))
	for _, cl := range classes {
		if d, ok := schedule.ParseWeekday(cl.WeekDay); ok && days[d] {
			out = append(out, cl)
		}
	}
	return out
}

func grid(classes []booking.ClassSchedule) []GridDay {
	var out []GridDay
	for _, d := range schedule.BookableWeekdays() {
		day := GridDay{Day: schedule.WeekdayName(d), Classes: []booking.ClassSchedule{}}
		for _, cl := range classes {
			if wd, ok := schedule.ParseWeekday(cl.WeekDay); ok && wd == d {
				day.Classes = append(day.Classes, cl)
			}
		}
		out = append(out, day)
	}
	return out
}

func (c *Controller) View(ctx context.Context, id string, viewer booking.Viewer) (*View, error) {
	st, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.render(ctx, st, c.restore(st), viewer), nil
}

func (c *Controller) restore(st *State) *booking.Wizard {
	return booking.Restore(st.Step, st.Draft, st.Classes, c.opts.Now)
}

func (c *Controller) render(ctx context.Context, st *State, w *booking.Wizard, viewer booking.Viewer) *View {
	v := &View{
		ID:          st.ID,
		Step:        w.Step(),
		Draft:       w.Draft(),
		Classes:     st.Classes,
		Grid:        grid(st.Classes),
		ValidDates:  w.ValidDates(),
		Slots:       w.Slots(),
		CanNext:     w.CanNext(viewer),
		CanPrevious: w.CanPrevious(),
		CanSubmit:   w.CanSubmit(viewer),
		Banner:      st.Banner,
		Advisory:    st.Advisory,
		User:        viewer.User,
	}
	if v.Classes == nil {
		v.Classes = []booking.ClassSchedule{}
	}
	if v.ValidDates == nil {
		v.ValidDates = []string{}
	}
	if cl, ok := w.SelectedClass(); ok {
		v.SelectedClass = &cl
		if len(v.Slots) == 0 {
			v.NoSlotsMessage = NoSlotsMessage
		}
	}
	if w.Step() == booking.StepReview && !viewer.Authenticated() {
		v.AuthNotice = SignInRequiredText
	}
	held, err := c.gate.Held(ctx, lockKey(st.ID))
	if err != nil {
		c.logger.Warn("submit lock check failed", zap.String("session", st.ID), zap.Error(err))
	}
	v.Loading = held
	return v
}

// mutate loads the session, applies fn to its wizard and saves the result.
// Nothing is saved when fn fails.
func (c *Controller) mutate(ctx context.Context, id string, viewer booking.Viewer, fn func(w *booking.Wizard) error) (*View, error) {
	st, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	w := c.restore(st)
	if err := fn(w); err != nil {
		return nil, err
	}
	st.Step = w.Step()
	st.Draft = w.Draft()
	if err := c.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return c.render(ctx, st, w, viewer), nil
}

func (c *Controller) SelectClass(ctx context.Context, id string, viewer booking.Viewer, classID string) (*View, error) {
	return c.mutate(ctx, id, viewer, func(w *booking.Wizard) error { return w.SelectClass(classID) })
}

func (c *Controller) SetBookingType(ctx context.Context, id string, viewer booking.Viewer, raw string) (*View, error) {
	t, ok := schedule.ParseBookingType(raw)
	if !ok {
		return nil, booking.ErrInvalidType
	}
	return c.mutate(ctx, id, viewer, func(w *booking.Wizard) error { return w.SetBookingType(t) })
}

func (c *Controller) SetBookingDate(ctx context.Context, id string, viewer booking.Viewer, date string) (*View, error) {
	return c.mutate(ctx, id, viewer, func(w *booking.Wizard) error { return w.SetBookingDate(date) })
}

func (c *Controller) SetStartTime(ctx context.Context, id string, viewer booking.Viewer, start string) (*View, error) {
	return c.mutate(ctx, id, viewer, func(w *booking.Wizard) error { return w.SetStartTime(start) })
}

func (c *Controller) SetNotes(ctx context.Context, id string, viewer booking.Viewer, notes string) (*View, error) {
	return c.mutate(ctx, id, viewer, func(w *booking.Wizard) error {
		w.SetNotes(notes)
		return nil
	})
}

func (c *Controller) Next(ctx context.Context, id string, viewer booking.Viewer) (*View, error) {
	return c.mutate(ctx, id, viewer, func(w *booking.Wizard) error { return w.Next(viewer) })
}

func (c *Controller) Previous(ctx context.Context, id string, viewer booking.Viewer) (*View, error) {
	return c.mutate(ctx, id, viewer, func(w *booking.Wizard) error { return w.Previous() })
}

// Close abandons a session. The draft is discarded.
func (c *Controller) Close(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	if _, err := c.notices.Drain(ctx, id); err != nil {
		c.logger.Warn("dropping notices failed", zap.String("session", id), zap.Error(err))
	}
	return nil
}

// SubmitResult is the outcome of a submission attempt the service answered.
// Record is nil when the service refused the booking.
type SubmitResult struct {
	Record *booking.BookingRecord `json:"record,omitempty"`
	View   *View                  `json:"view"`
}

// Submit sends the draft of session id. Refusals and transport failures from
// the service end up in the session banner and are not returned as errors.
// The session is read under the submit lock, so a draft is sent at most once.
func (c *Controller) Submit(ctx context.Context, id string, viewer booking.Viewer, token string) (*SubmitResult, error) {
	if !viewer.Authenticated() {
		c.opts.Metrics.ObserveSubmission("unauthenticated")
		return nil, ErrNotAuthenticated
	}

	lock := lockKey(id)
	ok, err := c.gate.Acquire(ctx, lock, c.opts.SubmitLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.opts.Metrics.ObserveSubmission("in_flight")
		return nil, ErrSubmitInFlight
	}

	st, w, rec, err := c.submitLocked(ctx, id, viewer, token)
	if err := c.gate.Release(context.WithoutCancel(ctx), lock); err != nil {
		c.logger.Warn("submit lock release failed", zap.String("session", id), zap.Error(err))
	}
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &SubmitResult{View: c.render(ctx, st, w, viewer)}, nil
	}

	if _, err := c.AnnounceSuccess(ctx, id, rec); err != nil {
		c.logger.Warn("success notice failed", zap.String("session", id), zap.Error(err))
	}
	return &SubmitResult{Record: rec, View: c.render(ctx, st, w, viewer)}, nil
}

// submitLocked runs while the caller holds the submit lock of id. A nil
// record with a nil error means the service refused the draft.
func (c *Controller) submitLocked(ctx context.Context, id string, viewer booking.Viewer, token string) (*State, *booking.Wizard, *booking.BookingRecord, error) {
	st, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	w := c.restore(st)
	if !w.CanSubmit(viewer) {
		return nil, nil, nil, booking.ErrStepIncomplete
	}

	rec, err := c.api.Submit(ctx, token, w.Request())
	if err != nil {
		outcome := "error"
		if errors.Is(err, reservations.ErrNoAvailability) {
			outcome = "no_availability"
		}
		c.opts.Metrics.ObserveSubmission(outcome)
		c.logger.Info("booking submission failed", zap.String("session", id), zap.String("outcome", outcome), zap.Error(err))

		st.Banner = NoAvailabilityText
		if err := c.store.Save(ctx, st); err != nil {
			return nil, nil, nil, err
		}
		return st, w, nil, nil
	}

	c.opts.Metrics.ObserveSubmission("success")
	c.logger.Info("booking submitted",
		zap.String("session", id), zap.String("booking", rec.ID), zap.String("status", string(rec.Status)))

	w.Reset()
	st.Step = w.Step()
	st.Draft = w.Draft()
	st.Banner = ""
	st.Advisory = advisoryFor(rec).Message
	if err := c.store.Save(ctx, st); err != nil {
		return nil, nil, nil, err
	}
	return st, w, rec, nil
}

// AnnounceSuccess pushes the success notice for rec, together with the
// instructor notification advisory. Within the cool-down after a notice only
// the first call emits; it reports whether it did.
func (c *Controller) AnnounceSuccess(ctx context.Context, id string, rec *booking.BookingRecord) (bool, error) {
	ok, err := c.gate.Acquire(ctx, cooldownKey(id), c.opts.SuccessCooldown)
	if err != nil || !ok {
		return false, err
	}
	notices := []Notice{{Kind: NoticeSuccess, Message: SuccessText}}
	if adv := advisoryFor(rec); adv.Message != "" {
		notices = append(notices, adv)
	}
	for _, n := range notices {
		if err := c.notices.Push(ctx, id, n); err != nil {
			return false, fmt.Errorf("push notice: %w", err)
		}
		c.opts.Metrics.ObserveNotice(string(n.Kind))
	}
	return true, nil
}

// Notices hands over and forgets the pending notices of a session.
func (c *Controller) Notices(ctx context.Context, id string) ([]Notice, error) {
	return c.notices.Drain(ctx, id)
}

func advisoryFor(rec *booking.BookingRecord) Notice {
	if rec == nil {
		return Notice{}
	}
	switch rec.NotificationStatus {
	case booking.NotificationSent:
		return Notice{Kind: NoticeInfo, Message: notificationSentText}
	case booking.NotificationSending:
		return Notice{Kind: NoticeInfo, Message: notificationSendingText}
	case booking.NotificationFailed:
		msg := notificationFailedText
		if rec.NotificationError != "" {
			msg += ": " + rec.NotificationError
		}
		return Notice{Kind: NoticeWarning, Message: msg}
	}
	return Notice{}
}

func lockKey(id string) string     { return "wizard:submit-lock:" + id }
func cooldownKey(id string) string { return "wizard:success-cooldown:" + id }
