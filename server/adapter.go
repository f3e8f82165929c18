package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AVas112/MainBot/plugin/assistant"
	"github.com/AVas112/MainBot/server/notifier"
	"github.com/AVas112/MainBot/store"
)

// storeThreads exposes the user_thread table to the session layer.
type storeThreads struct {
	store *store.Store
}

func (a *storeThreads) GetThreadID(ctx context.Context, userID string) (string, error) {
	thread, err := a.store.GetUserThread(ctx, &store.FindUserThread{UserID: &userID})
	if err != nil {
		return "", err
	}
	if thread == nil {
		return "", nil
	}
	return thread.ThreadID, nil
}

func (a *storeThreads) UpsertThread(ctx context.Context, userID, username, threadID string, lastActive time.Time) error {
	_, err := a.store.UpsertUserThread(ctx, &store.UserThread{
		UserID:       userID,
		Username:     username,
		ThreadID:     threadID,
		LastActiveTs: lastActive.Unix(),
	})
	return err
}

// storeDialogs records turn messages.
type storeDialogs struct {
	store *store.Store
}

func (a *storeDialogs) RecordMessage(ctx context.Context, userID, username, role, content string) error {
	_, err := a.store.CreateDialogMessage(ctx, &store.DialogMessage{
		UserID:    userID,
		Username:  username,
		Role:      store.DialogMessageRole(role),
		Content:   content,
		CreatedTs: time.Now().Unix(),
	})
	return err
}

// storeContacts persists captured contacts.
type storeContacts struct {
	store *store.Store
}

func (a *storeContacts) SaveContact(ctx context.Context, userID, username string, contact assistant.ExtractedContact, payload []byte) error {
	_, err := a.store.CreateCapturedContact(ctx, &store.CapturedContact{
		UID:       uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Name:      contact.Name,
		Phone:     contact.Phone,
		Email:     contact.Email,
		Payload:   string(payload),
		CreatedTs: time.Now().Unix(),
	})
	return err
}

// sinkNotifier bridges the contact capture tool to the notification sink.
type sinkNotifier struct {
	sink notifier.Sink
}

func (a *sinkNotifier) ContactCaptured(ctx context.Context, userID, username string, contact assistant.ExtractedContact) {
	event := notifier.ContactEvent{
		UserID:     userID,
		Username:   username,
		Contact:    contact,
		CapturedAt: time.Now(),
	}
	if err := a.sink.ContactCaptured(ctx, event); err != nil {
		slog.Warn("contact notification failed", "user_id", userID, "error", err)
	}
}

// logOutbound is the default reminder transport when no chat push channel
// is wired in: it only logs the generated text. The remote thread already
// carries the reminder exchange.
type logOutbound struct{}

func (logOutbound) SendMessage(_ context.Context, userID, text string) error {
	slog.Info("reminder generated", "user_id", userID, "text", text)
	return nil
}

var (
	_ assistant.ThreadStore    = (*storeThreads)(nil)
	_ assistant.DialogRecorder = (*storeDialogs)(nil)
)
