package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AVas112/MainBot/plugin/assistant"
)

type recordedContact struct {
	userID   string
	username string
	contact  assistant.ExtractedContact
	payload  []byte
}

type fakeContactStore struct {
	err   error
	saved []recordedContact
}

func (f *fakeContactStore) SaveContact(_ context.Context, userID, username string, contact assistant.ExtractedContact, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, recordedContact{userID: userID, username: username, contact: contact, payload: payload})
	return nil
}

type fakeContactNotifier struct {
	events []recordedContact
}

func (f *fakeContactNotifier) ContactCaptured(_ context.Context, userID, username string, contact assistant.ExtractedContact) {
	f.events = append(f.events, recordedContact{userID: userID, username: username, contact: contact})
}

func TestContactCapture(t *testing.T) {
	store := &fakeContactStore{}
	notifier := &fakeContactNotifier{}
	handler := NewContactCapture(store, notifier)

	effects := &assistant.TurnEffects{Username: "alice"}
	ctx := assistant.WithEffects(context.Background(), effects)

	payload := json.RawMessage(`{"name":"Bob","phone_number":"+100200","email":"bob@example.com"}`)
	output, err := handler(ctx, "42", payload)
	require.NoError(t, err)

	var status map[string]string
	require.NoError(t, json.Unmarshal([]byte(output), &status))
	assert.Equal(t, "success", status["status"])

	require.Len(t, store.saved, 1)
	assert.Equal(t, "42", store.saved[0].userID)
	assert.Equal(t, "alice", store.saved[0].username)
	assert.Equal(t, "Bob", store.saved[0].contact.Name)
	assert.Equal(t, "+100200", store.saved[0].contact.Phone)
	assert.JSONEq(t, string(payload), string(store.saved[0].payload))

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "bob@example.com", notifier.events[0].contact.Email)

	contacts := effects.Contacts()
	require.Len(t, contacts, 1)
	assert.Equal(t, "Bob", contacts[0].Name)
}

func TestContactCaptureMalformedPayload(t *testing.T) {
	handler := NewContactCapture(&fakeContactStore{}, &fakeContactNotifier{})

	_, err := handler(context.Background(), "42", json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestContactCaptureEmptyPayload(t *testing.T) {
	store := &fakeContactStore{}
	handler := NewContactCapture(store, &fakeContactNotifier{})

	_, err := handler(context.Background(), "42", json.RawMessage(`{}`))
	assert.Error(t, err)
	assert.Empty(t, store.saved)
}

func TestContactCaptureStoreFailureStillSucceeds(t *testing.T) {
	store := &fakeContactStore{err: errors.New("db down")}
	notifier := &fakeContactNotifier{}
	handler := NewContactCapture(store, notifier)

	output, err := handler(context.Background(), "42", json.RawMessage(`{"name":"Bob"}`))
	require.NoError(t, err)
	assert.Contains(t, output, "success")
	// The notification still goes out even when persistence fails.
	assert.Len(t, notifier.events, 1)
}

func TestContactCaptureWithoutEffectsUsesUserID(t *testing.T) {
	store := &fakeContactStore{}
	handler := NewContactCapture(store, nil)

	_, err := handler(context.Background(), "42", json.RawMessage(`{"phone_number":"+1"}`))
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "42", store.saved[0].username)
}

func TestContactCaptureNilSinks(t *testing.T) {
	handler := NewContactCapture(nil, nil)

	output, err := handler(context.Background(), "42", json.RawMessage(`{"email":"a@b.c"}`))
	require.NoError(t, err)
	assert.Contains(t, output, "success")
}
