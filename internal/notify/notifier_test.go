package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type staticDirectory map[uuid.UUID]Contact

func (d staticDirectory) LookupContact(ctx context.Context, patientID uuid.UUID) (Contact, error) {
	c, ok := d[patientID]
	if !ok {
		return Contact{}, ErrNoContact
	}
	return c, nil
}

func TestEmailNotifierRendersReminder(t *testing.T) {
	pid := uuid.New()
	sender := &recordingSender{}
	n := NewEmailNotifier(sender, staticDirectory{pid: {Name: "Ana", Email: "ana@example.com"}}, time.UTC, nil)

	err := n.Notify(context.Background(), Notification{
		Kind:        KindReminder1h,
		PatientID:   pid,
		ScheduledAt: time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC),
		JoinURL:     "https://meet.example.com/abc",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ana@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Subject, "one hour")
	assert.Contains(t, sender.sent[0].Body, "09:00")
	assert.Contains(t, sender.sent[0].Body, "https://meet.example.com/abc")
}

func TestEmailNotifierErrors(t *testing.T) {
	pid := uuid.New()
	dir := staticDirectory{pid: {Name: "Ana", Email: "ana@example.com"}}

	n := NewEmailNotifier(&recordingSender{}, dir, nil, nil)
	err := n.Notify(context.Background(), Notification{Kind: KindReminder24h, PatientID: uuid.New()})
	assert.ErrorIs(t, err, ErrNoContact)

	err = n.Notify(context.Background(), Notification{Kind: "sms", PatientID: pid})
	assert.ErrorContains(t, err, "unknown notification kind")

	boom := errors.New("smtp down")
	n = NewEmailNotifier(&recordingSender{err: boom}, dir, nil, nil)
	err = n.Notify(context.Background(), Notification{Kind: KindAppointmentCancelled, PatientID: pid})
	assert.ErrorIs(t, err, boom)
}

func TestNewSendGridSender(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "a@example.com"}, nil))

	s := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "a@example.com"}, nil)
	require.NotNil(t, s)
	assert.Equal(t, defaultFromName, s.fromName)

	var nilSender *SendGridSender
	assert.Error(t, nilSender.Send(context.Background(), EmailMessage{To: "x@example.com"}))
}

type fakeSES struct {
	input *sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSenderBuildsInput(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))

	api := &fakeSES{}
	s := NewSESSender(api, SESConfig{FromEmail: "clinic@example.com", FromName: "Clinic"}, nil)
	require.NoError(t, s.Send(context.Background(), EmailMessage{To: "ana@example.com", Subject: "Hi", Body: "text"}))

	require.NotNil(t, api.input)
	assert.Equal(t, "Clinic <clinic@example.com>", aws.ToString(api.input.FromEmailAddress))
	assert.Equal(t, []string{"ana@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "text", aws.ToString(api.input.Content.Simple.Body.Text.Data))
	assert.Nil(t, api.input.Content.Simple.Body.Html)
}

func TestStubEmailSender(t *testing.T) {
	assert.NoError(t, NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: "a@example.com"}))
}
