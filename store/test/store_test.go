package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AVas112/MainBot/internal/profile"
	"github.com/AVas112/MainBot/store"
	"github.com/AVas112/MainBot/store/db"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	p := profile.Default()
	p.Mode = "test"
	p.Driver = "sqlite"
	p.Data = t.TempDir()
	p.DSN = ""

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)

	require.NoError(t, driver.Migrate(context.Background()))

	s := store.New(driver, p)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestDialogMessageStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now().Unix()
	for i, row := range []struct {
		userID  string
		role    store.DialogMessageRole
		content string
	}{
		{"user-1", store.DialogMessageRoleUser, "hello"},
		{"user-1", store.DialogMessageRoleAssistant, "hi there"},
		{"user-2", store.DialogMessageRoleUser, "other user"},
	} {
		_, err := s.CreateDialogMessage(ctx, &store.DialogMessage{
			UserID:    row.userID,
			Username:  "tester",
			Role:      row.role,
			Content:   row.content,
			CreatedTs: now + int64(i),
		})
		require.NoError(t, err)
	}

	userID := "user-1"
	list, err := s.ListDialogMessages(ctx, &store.FindDialogMessage{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "hello", list[0].Content)
	require.Equal(t, store.DialogMessageRoleAssistant, list[1].Role)

	after := now + 2
	list, err = s.ListDialogMessages(ctx, &store.FindDialogMessage{CreatedAfter: &after})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "user-2", list[0].UserID)
}

func TestCapturedContactStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.CreateCapturedContact(ctx, &store.CapturedContact{
		UID:       "c0ffee",
		UserID:    "user-1",
		Username:  "tester",
		Name:      "Ada",
		Phone:     "+100200300",
		Email:     "ada@example.com",
		Payload:   `{"name":"Ada"}`,
		CreatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	userID := "user-1"
	list, err := s.ListCapturedContacts(ctx, &store.FindCapturedContact{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Ada", list[0].Name)
	require.Equal(t, "+100200300", list[0].Phone)
}

func TestUserThreadStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.UpsertUserThread(ctx, &store.UserThread{
		UserID:       "user-1",
		Username:     "tester",
		ThreadID:     "thread-abc",
		LastActiveTs: 1000,
	})
	require.NoError(t, err)
	require.Equal(t, int32(0), first.TurnCount)

	second, err := s.UpsertUserThread(ctx, &store.UserThread{
		UserID:       "user-1",
		Username:     "tester",
		ThreadID:     "thread-abc",
		LastActiveTs: 2000,
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), second.TurnCount)
	require.Equal(t, int64(2000), second.LastActiveTs)

	userID := "user-1"
	got, err := s.GetUserThread(ctx, &store.FindUserThread{UserID: &userID})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "thread-abc", got.ThreadID)

	missing := "nobody"
	got, err = s.GetUserThread(ctx, &store.FindUserThread{UserID: &missing})
	require.NoError(t, err)
	require.Nil(t, got)

	// Mark the first reminder stage, then verify renewed activity clears it.
	ts := int64(3000)
	require.NoError(t, s.UpdateUserThread(ctx, &store.UpdateUserThread{
		UserID:          "user-1",
		FirstReminderTs: &ts,
	}))

	got, err = s.GetUserThread(ctx, &store.FindUserThread{UserID: &userID})
	require.NoError(t, err)
	require.Equal(t, ts, got.FirstReminderTs)

	third, err := s.UpsertUserThread(ctx, &store.UserThread{
		UserID:       "user-1",
		Username:     "tester",
		ThreadID:     "thread-abc",
		LastActiveTs: 4000,
	})
	require.NoError(t, err)
	require.Zero(t, third.FirstReminderTs)
	require.Equal(t, int32(2), third.TurnCount)

	inactiveSince := int64(4000)
	stale, err := s.ListUserThreads(ctx, &store.FindUserThread{InactiveSince: &inactiveSince})
	require.NoError(t, err)
	require.Len(t, stale, 1)
}
