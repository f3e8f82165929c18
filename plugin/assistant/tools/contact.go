// Package tools holds the local handlers behind the assistant's tool calls.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/AVas112/MainBot/plugin/assistant"
)

// ContactCaptureToolName is the tool the assistant calls once a user has
// agreed to leave contact details.
const ContactCaptureToolName = "get_client_contact_info"

// ContactStore persists captured contacts.
type ContactStore interface {
	SaveContact(ctx context.Context, userID, username string, contact assistant.ExtractedContact, payload []byte) error
}

// ContactNotifier delivers the captured-contact event to the side channel.
// Delivery failures are the notifier's problem; they never fail the turn.
type ContactNotifier interface {
	ContactCaptured(ctx context.Context, userID, username string, contact assistant.ExtractedContact)
}

// NewContactCapture builds the handler for the contact capture tool. The
// handler parses the structured contact payload emitted by the assistant,
// records it, fans it out to the notifier, and reports success back to the
// run so the conversation can continue.
func NewContactCapture(store ContactStore, notifier ContactNotifier) assistant.HandlerFunc {
	return func(ctx context.Context, userID string, args json.RawMessage) (string, error) {
		var contact assistant.ExtractedContact
		if err := json.Unmarshal(args, &contact); err != nil {
			return "", fmt.Errorf("malformed contact payload: %w", err)
		}
		if contact.Name == "" && contact.Phone == "" && contact.Email == "" {
			return "", fmt.Errorf("contact payload carries no usable fields")
		}

		effects := assistant.EffectsFromContext(ctx)
		username := userID
		if effects != nil && effects.Username != "" {
			username = effects.Username
		}

		slog.Info("contact captured",
			"user_id", userID,
			"has_phone", contact.Phone != "",
			"has_email", contact.Email != "")

		if store != nil {
			if err := store.SaveContact(ctx, userID, username, contact, args); err != nil {
				slog.Error("failed to save captured contact", "user_id", userID, "error", err)
			}
		}
		if notifier != nil {
			notifier.ContactCaptured(ctx, userID, username, contact)
		}
		effects.AddContact(contact)

		output, err := json.Marshal(map[string]string{
			"status":  "success",
			"message": "Contact information saved and notification sent",
		})
		if err != nil {
			return `{"status":"success"}`, nil
		}
		return string(output), nil
	}
}
