package metrics

import "github.com/prometheus/client_golang/prometheus"

// WizardMetrics counts what the booking wizard does with submissions.
type WizardMetrics struct {
	submissions *prometheus.CounterVec
	notices     *prometheus.CounterVec
	classGrid   *prometheus.CounterVec
}

func NewWizardMetrics(reg prometheus.Registerer) *WizardMetrics {
	m := &WizardMetrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ceramica",
			Subsystem: "wizard",
			Name:      "submissions_total",
			Help:      "Booking submissions by outcome",
		}, []string{"outcome"}),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ceramica",
			Subsystem: "wizard",
			Name:      "notices_total",
			Help:      "Notices pushed to the customer",
		}, []string{"kind"}),
		classGrid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ceramica",
			Subsystem: "wizard",
			Name:      "class_grid_fetch_total",
			Help:      "Class grid fetches by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissions, m.notices, m.classGrid)
	return m
}

func (m *WizardMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *WizardMetrics) ObserveNotice(kind string) {
	if m == nil {
		return
	}
	m.notices.WithLabelValues(kind).Inc()
}

func (m *WizardMetrics) ObserveClassGrid(status string) {
	if m == nil {
		return
	}
	m.classGrid.WithLabelValues(status).Inc()
}

// ReservationMetrics counts bookings handled by the reservation service.
type ReservationMetrics struct {
	bookings      *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	m := &ReservationMetrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ceramica",
			Subsystem: "reservations",
			Name:      "bookings_total",
			Help:      "Booking requests by type and result",
		}, []string{"type", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ceramica",
			Subsystem: "reservations",
			Name:      "instructor_notifications_total",
			Help:      "Instructor notification e-mails by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookings, m.notifications)
	return m
}

func (m *ReservationMetrics) ObserveBooking(bookingType, result string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(bookingType, result).Inc()
}

func (m *ReservationMetrics) ObserveNotification(status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(status).Inc()
}
