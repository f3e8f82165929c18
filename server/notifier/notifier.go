// Package notifier delivers side-channel notifications produced during
// conversation turns. Sinks are fire-and-forget from the orchestrator's
// point of view: a delivery failure never fails a turn.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/AVas112/MainBot/plugin/assistant"
)

// ContactEvent describes contact information captured during a turn.
type ContactEvent struct {
	UserID     string
	Username   string
	Contact    assistant.ExtractedContact
	CapturedAt time.Time
}

// EscalationEvent describes a condition an operator should look at.
type EscalationEvent struct {
	UserID     string
	Username   string
	Reason     string
	OccurredAt time.Time
}

// Sink receives notification events.
type Sink interface {
	ContactCaptured(ctx context.Context, event ContactEvent) error
	Escalate(ctx context.Context, event EscalationEvent) error
}

// LogSink writes events to the structured log. It is the fallback sink
// when no mail transport is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) ContactCaptured(_ context.Context, event ContactEvent) error {
	s.logger.Info("contact captured",
		"user_id", event.UserID,
		"username", event.Username,
		"name", event.Contact.Name,
		"phone", event.Contact.Phone,
		"email", event.Contact.Email,
	)
	return nil
}

func (s *LogSink) Escalate(_ context.Context, event EscalationEvent) error {
	s.logger.Warn("escalation",
		"user_id", event.UserID,
		"username", event.Username,
		"reason", event.Reason,
	)
	return nil
}

// MultiSink fans events out to several sinks. A failing sink is logged and
// skipped so one broken channel does not silence the others.
type MultiSink struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: slog.Default()}
}

func (m *MultiSink) ContactCaptured(ctx context.Context, event ContactEvent) error {
	for _, sink := range m.sinks {
		if err := sink.ContactCaptured(ctx, event); err != nil {
			m.logger.Warn("notification sink failed", "event", "contact_captured", "error", err)
		}
	}
	return nil
}

func (m *MultiSink) Escalate(ctx context.Context, event EscalationEvent) error {
	for _, sink := range m.sinks {
		if err := sink.Escalate(ctx, event); err != nil {
			m.logger.Warn("notification sink failed", "event", "escalation", "error", err)
		}
	}
	return nil
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*MultiSink)(nil)
)
