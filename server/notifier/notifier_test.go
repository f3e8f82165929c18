package notifier

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AVas112/MainBot/plugin/assistant"
	"github.com/AVas112/MainBot/store"
)

type fakeDialogSource struct {
	messages []*store.DialogMessage
	err      error
}

func (f *fakeDialogSource) ListDialogMessages(_ context.Context, _ *store.FindDialogMessage) ([]*store.DialogMessage, error) {
	return f.messages, f.err
}

type recordingSink struct {
	contacts    []ContactEvent
	escalations []EscalationEvent
	err         error
}

func (r *recordingSink) ContactCaptured(_ context.Context, event ContactEvent) error {
	r.contacts = append(r.contacts, event)
	return r.err
}

func (r *recordingSink) Escalate(_ context.Context, event EscalationEvent) error {
	r.escalations = append(r.escalations, event)
	return r.err
}

func TestEmailSinkContactCaptured(t *testing.T) {
	var sentTo []string
	var sentBody string

	sink := NewEmailSink(SMTPConfig{
		Server:   "smtp.example.com",
		Port:     587,
		Username: "bot@example.com",
		Password: "secret",
		To:       "sales@example.com",
	}, &fakeDialogSource{
		messages: []*store.DialogMessage{
			{UserID: "42", Role: store.DialogMessageRoleUser, Content: "I want a <quote>", CreatedTs: 1700000000},
			{UserID: "42", Role: store.DialogMessageRoleAssistant, Content: "Sure, leave your phone", CreatedTs: 1700000060},
		},
	})
	sink.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		assert.Equal(t, "smtp.example.com:587", addr)
		assert.Equal(t, "bot@example.com", from)
		sentTo = to
		sentBody = string(msg)
		return nil
	}

	err := sink.ContactCaptured(context.Background(), ContactEvent{
		UserID:     "42",
		Username:   "ada",
		Contact:    assistant.ExtractedContact{Name: "Ada", Phone: "+1555", Email: "ada@example.com"},
		CapturedAt: time.Unix(1700000120, 0),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"sales@example.com"}, sentTo)

	assert.Contains(t, sentBody, "Subject: New contact: Ada")
	assert.Contains(t, sentBody, "Content-Type: text/html")
	assert.Contains(t, sentBody, "+1555")
	assert.Contains(t, sentBody, "Dialog transcript")
	// Transcript content is escaped.
	assert.Contains(t, sentBody, "I want a &lt;quote&gt;")
}

func TestEmailSinkTranscriptFailureStillSends(t *testing.T) {
	sink := NewEmailSink(SMTPConfig{Server: "smtp.example.com", Port: 25, To: "ops@example.com"}, &fakeDialogSource{err: errors.New("db down")})

	sent := false
	sink.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		sent = true
		assert.NotContains(t, string(msg), "Dialog transcript")
		return nil
	}

	err := sink.ContactCaptured(context.Background(), ContactEvent{UserID: "42", Username: "ada"})
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestEmailSinkEscalate(t *testing.T) {
	sink := NewEmailSink(SMTPConfig{Server: "smtp.example.com", Port: 25, To: "ops@example.com"}, nil)

	var sentBody string
	sink.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		sentBody = string(msg)
		return nil
	}

	err := sink.Escalate(context.Background(), EscalationEvent{
		UserID:     "42",
		Username:   "ada",
		Reason:     "manager requested",
		OccurredAt: time.Unix(1700000000, 0),
	})
	require.NoError(t, err)
	assert.Contains(t, sentBody, "Subject: Dialog escalation")
	assert.Contains(t, sentBody, "manager requested")
}

func TestMultiSinkIsolatesFailures(t *testing.T) {
	failing := &recordingSink{err: errors.New("smtp down")}
	healthy := &recordingSink{}
	multi := NewMultiSink(failing, healthy)

	event := ContactEvent{UserID: "42", Username: "ada"}
	require.NoError(t, multi.ContactCaptured(context.Background(), event))

	assert.Len(t, failing.contacts, 1)
	assert.Len(t, healthy.contacts, 1)

	require.NoError(t, multi.Escalate(context.Background(), EscalationEvent{UserID: "42"}))
	assert.Len(t, healthy.escalations, 1)
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink(nil)
	assert.NoError(t, sink.ContactCaptured(context.Background(), ContactEvent{UserID: "42"}))
	assert.NoError(t, sink.Escalate(context.Background(), EscalationEvent{UserID: "42"}))
}
