package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNoRecipient = errors.New("notify: instructor has no e-mail address")

// BookingNotice is what the instructor needs to know about a new booking.
type BookingNotice struct {
	ClassName         string
	InstructorName    string
	InstructorEmail   string
	StudentName       string
	StudentEmail      string
	BookingDate       string
	StartTime         string
	EndTime           string
	BookingType       string
	RecurrenceEndDate string
	Notes             string
}

// InstructorNotifier e-mails instructors when someone books their class.
type InstructorNotifier struct {
	sender EmailSender
}

func NewInstructorNotifier(sender EmailSender) *InstructorNotifier {
	return &InstructorNotifier{sender: sender}
}

func (n *InstructorNotifier) BookingCreated(ctx context.Context, b BookingNotice) error {
	if strings.TrimSpace(b.InstructorEmail) == "" {
		return ErrNoRecipient
	}
	return n.sender.Send(ctx, BookingCreatedMessage(b))
}

// BookingCreatedMessage renders the instructor e-mail for b.
func BookingCreatedMessage(b BookingNotice) EmailMessage {
	student := b.StudentName
	if student == "" {
		student = b.StudentEmail
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Hola %s,\n\n", b.InstructorName)
	fmt.Fprintf(&body, "%s (%s) ha reservado %s.\n\n", student, b.StudentEmail, b.ClassName)
	fmt.Fprintf(&body, "Fecha: %s\n", b.BookingDate)
	fmt.Fprintf(&body, "Horario: %s - %s\n", b.StartTime, b.EndTime)
	if b.BookingType == "RECURRENTE" {
		fmt.Fprintf(&body, "Reserva semanal hasta el %s\n", b.RecurrenceEndDate)
	}
	if b.Notes != "" {
		fmt.Fprintf(&body, "\nNotas: %s\n", b.Notes)
	}

	return EmailMessage{
		To:      b.InstructorEmail,
		ToName:  b.InstructorName,
		Subject: fmt.Sprintf("Nueva reserva: %s el %s a las %s", b.ClassName, b.BookingDate, b.StartTime),
		Body:    body.String(),
	}
}
