package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

var ErrNoContact = errors.New("notify: recipient has no contact address")

type Kind string

const (
	KindReminder24h          Kind = "reminder_24h"
	KindReminder1h           Kind = "reminder_1h"
	KindAppointmentCancelled Kind = "appointment_cancelled"
)

// Notification carries the appointment context a message is rendered from
type Notification struct {
	Kind          Kind
	PatientID     uuid.UUID
	AppointmentID uuid.UUID
	ProviderID    uuid.UUID
	ScheduledAt   time.Time
	JoinURL       string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type Contact struct {
	Name  string
	Email string
}

// ContactDirectory resolves a patient to an address
type ContactDirectory interface {
	LookupContact(ctx context.Context, patientID uuid.UUID) (Contact, error)
}

// EmailNotifier renders notifications as plain emails
type EmailNotifier struct {
	sender    EmailSender
	directory ContactDirectory
	loc       *time.Location
	logger    *logging.Logger
}

func NewEmailNotifier(sender EmailSender, directory ContactDirectory, loc *time.Location, logger *logging.Logger) *EmailNotifier {
	if sender == nil || directory == nil {
		panic("notify: sender and directory required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EmailNotifier{sender: sender, directory: directory, loc: loc, logger: logger}
}

func (n *EmailNotifier) Notify(ctx context.Context, note Notification) error {
	contact, err := n.directory.LookupContact(ctx, note.PatientID)
	if err != nil {
		return fmt.Errorf("notify: lookup contact: %w", err)
	}

	msg, err := n.render(note, contact)
	if err != nil {
		return err
	}

	if err := n.sender.Send(ctx, msg); err != nil {
		return err
	}
	n.logger.Debug("notification sent", "kind", note.Kind, "appointment_id", note.AppointmentID)
	return nil
}

func (n *EmailNotifier) render(note Notification, c Contact) (EmailMessage, error) {
	when := note.ScheduledAt.In(n.loc).Format("Mon, 02 Jan 2006 15:04 MST")
	msg := EmailMessage{To: c.Email, ToName: c.Name}

	switch note.Kind {
	case KindReminder24h:
		msg.Subject = "Your consultation is tomorrow"
		msg.Body = fmt.Sprintf("Hi %s, this is a reminder of your consultation on %s.", c.Name, when)
	case KindReminder1h:
		msg.Subject = "Your consultation starts in one hour"
		msg.Body = fmt.Sprintf("Hi %s, your consultation starts at %s.", c.Name, when)
	case KindAppointmentCancelled:
		msg.Subject = "Your consultation was cancelled"
		msg.Body = fmt.Sprintf("Hi %s, your consultation on %s has been cancelled.", c.Name, when)
	default:
		return EmailMessage{}, fmt.Errorf("notify: unknown notification kind %q", note.Kind)
	}

	if note.JoinURL != "" {
		msg.Body += "\nJoin link: " + note.JoinURL
	}
	return msg, nil
}
