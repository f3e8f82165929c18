package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AVas112/MainBot/store"
)

type fakeDialogs struct {
	messages []*store.DialogMessage
	err      error
	gotFind  *store.FindDialogMessage
}

func (f *fakeDialogs) ListDialogMessages(_ context.Context, find *store.FindDialogMessage) ([]*store.DialogMessage, error) {
	f.gotFind = find
	return f.messages, f.err
}

type fakeMailer struct {
	subject string
	body    string
	err     error
	sent    int
}

func (f *fakeMailer) SendReport(subject, htmlBody string) error {
	f.sent++
	f.subject = subject
	f.body = htmlBody
	return f.err
}

func TestRunOnce(t *testing.T) {
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	dialogs := &fakeDialogs{messages: []*store.DialogMessage{
		{UserID: "2", Username: "bob", Role: store.DialogMessageRoleUser, Content: "price?", CreatedTs: now.Add(-2 * time.Hour).Unix()},
		{UserID: "1", Username: "ada", Role: store.DialogMessageRoleUser, Content: "hello <there>", CreatedTs: now.Add(-3 * time.Hour).Unix()},
		{UserID: "1", Username: "ada", Role: store.DialogMessageRoleAssistant, Content: "hi", CreatedTs: now.Add(-3 * time.Hour).Unix()},
	}}
	mailer := &fakeMailer{}

	svc := NewService(dialogs, mailer, Config{Hour: 8, Minute: 30, Location: time.UTC})
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.RunOnce(context.Background()))
	require.Equal(t, 1, mailer.sent)

	assert.Equal(t, "Dialog report 2024-04-10", mailer.subject)
	assert.Contains(t, mailer.body, "2 user(s), 3 message(s)")
	assert.Contains(t, mailer.body, "ada (id 1)")
	assert.Contains(t, mailer.body, "bob (id 2)")
	assert.Contains(t, mailer.body, "hello &lt;there&gt;")

	// Only the trailing 24h window is requested.
	require.NotNil(t, dialogs.gotFind.CreatedAfter)
	assert.Equal(t, now.Add(-24*time.Hour).Unix(), *dialogs.gotFind.CreatedAfter)
}

func TestRunOnceEmptyPeriod(t *testing.T) {
	mailer := &fakeMailer{}
	svc := NewService(&fakeDialogs{}, mailer, Config{Hour: 8, Location: time.UTC})

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Contains(t, mailer.body, "No conversations in this period.")
}

func TestRunOnceMailerFailure(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	svc := NewService(&fakeDialogs{}, mailer, Config{Hour: 8, Location: time.UTC})

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to mail report")
}

func TestNextRun(t *testing.T) {
	svc := NewService(&fakeDialogs{}, &fakeMailer{}, Config{Hour: 8, Minute: 30, Location: time.UTC})

	t.Run("before send time", func(t *testing.T) {
		svc.now = func() time.Time { return time.Date(2024, 4, 10, 6, 0, 0, 0, time.UTC) }
		next := svc.nextRun()
		assert.Equal(t, time.Date(2024, 4, 10, 8, 30, 0, 0, time.UTC), next)
	})

	t.Run("after send time rolls to tomorrow", func(t *testing.T) {
		svc.now = func() time.Time { return time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC) }
		next := svc.nextRun()
		assert.Equal(t, time.Date(2024, 4, 11, 8, 30, 0, 0, time.UTC), next)
	})
}
