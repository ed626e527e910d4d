package booking

import (
	"time"

	"ceramica-booking/internal/schedule"
)

type BookingType = schedule.BookingType

const (
	Puntual    = schedule.Puntual
	Recurrente = schedule.Recurrente
)

// ClassSchedule is one recurring weekly class as published by the catalog.
type ClassSchedule struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Instructor string `json:"instructor"`
	WeekDay    string `json:"weekDay"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

// Draft is the in-progress selection of a wizard session. Which fields must be
// set depends on the step; see Wizard.IsStepValid.
type Draft struct {
	ClassID           string      `json:"classId"`
	BookingDate       string      `json:"bookingDate"`
	StartTime         string      `json:"startTime"`
	EndTime           string      `json:"endTime"`
	BookingType       BookingType `json:"bookingType"`
	RecurrenceEndDate string      `json:"recurrenceEndDate"`
	Notes             string      `json:"notes"`
}

// EmptyDraft is the state a wizard opens with.
func EmptyDraft() Draft {
	return Draft{BookingType: Puntual}
}

// ClassRef identifies the class being booked in a submission.
type ClassRef struct {
	ID string `json:"id"`
}

// SubmitRequest is the body posted to the reservation service.
type SubmitRequest struct {
	ClassEntity       ClassRef    `json:"classEntity"`
	BookingDate       string      `json:"bookingDate"`
	StartTime         string      `json:"startTime"`
	EndTime           string      `json:"endTime"`
	BookingType       BookingType `json:"bookingType"`
	RecurrenceEndDate *string     `json:"recurrenceEndDate"`
	Notes             string      `json:"notes,omitempty"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

type NotificationStatus string

const (
	NotificationSending NotificationStatus = "sending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// BookingRecord is the reservation as reported back by the reservation service.
type BookingRecord struct {
	ID                 string             `json:"id"`
	ClassID            string             `json:"classId"`
	BookingDate        string             `json:"bookingDate"`
	StartTime          string             `json:"startTime"`
	EndTime            string             `json:"endTime"`
	BookingType        BookingType        `json:"bookingType"`
	RecurrenceEndDate  string             `json:"recurrenceEndDate,omitempty"`
	Notes              string             `json:"notes,omitempty"`
	Status             Status             `json:"status"`
	NotificationStatus NotificationStatus `json:"notificationStatus,omitempty"`
	NotificationError  string             `json:"notificationError,omitempty"`
	CreatedAt          time.Time          `json:"createdAt,omitempty"`
}

// User is the signed-in booker.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Viewer is the authentication context a wizard step is evaluated against.
// A nil User means anonymous.
type Viewer struct {
	User *User
}

func (v Viewer) Authenticated() bool {
	return v.User != nil && v.User.Email != ""
}
