// Package reminder nudges users who went silent mid-conversation. Two
// stages: a first reminder after a short inactivity window and a final one
// after a longer window. Users whose contact information has already been
// captured are left alone.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/AVas112/MainBot/plugin/assistant"
	"github.com/AVas112/MainBot/store"
)

// Outbound pushes generated reminder text to the user over the chat
// transport. The transport itself is out of scope here.
type Outbound interface {
	SendMessage(ctx context.Context, userID, text string) error
}

// TurnHandler runs a prompt through the user's conversation session.
// *assistant.Registry satisfies it.
type TurnHandler interface {
	HandleTurn(ctx context.Context, userID, username, text string) (*assistant.Reply, error)
}

// ThreadSource lists and marks user threads. *store.Store satisfies it.
type ThreadSource interface {
	ListUserThreads(ctx context.Context, find *store.FindUserThread) ([]*store.UserThread, error)
	UpdateUserThread(ctx context.Context, update *store.UpdateUserThread) error
}

// ContactSource reports captured contacts. *store.Store satisfies it.
type ContactSource interface {
	ListCapturedContacts(ctx context.Context, find *store.FindCapturedContact) ([]*store.CapturedContact, error)
}

// Config controls reminder cadence and content.
type Config struct {
	Interval     time.Duration // how often to scan for inactive users
	FirstAfter   time.Duration // inactivity before the first reminder
	SecondAfter  time.Duration // inactivity before the second reminder
	FirstPrompt  string
	SecondPrompt string
}

// Service is the background reminder runner.
type Service struct {
	threads  ThreadSource
	contacts ContactSource
	turns    TurnHandler
	outbound Outbound
	cfg      Config
	logger   *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

func NewService(threads ThreadSource, contacts ContactSource, turns TurnHandler, outbound Outbound, cfg Config) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Service{
		threads:  threads,
		contacts: contacts,
		turns:    turns,
		outbound: outbound,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// Run starts the periodic scan and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder service stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single scan over inactive threads.
func (s *Service) RunOnce(ctx context.Context) {
	now := s.now()
	cutoff := now.Add(-s.cfg.FirstAfter).Unix()

	threads, err := s.threads.ListUserThreads(ctx, &store.FindUserThread{InactiveSince: &cutoff})
	if err != nil {
		s.logger.Error("failed to list inactive threads", "error", err)
		return
	}

	for _, thread := range threads {
		if ctx.Err() != nil {
			return
		}
		s.remind(ctx, thread, now)
	}
}

func (s *Service) remind(ctx context.Context, thread *store.UserThread, now time.Time) {
	stage, prompt := s.dueStage(thread, now)
	if stage == 0 {
		return
	}

	logger := s.logger.With("user_id", thread.UserID, "stage", stage)

	captured, err := s.contacts.ListCapturedContacts(ctx, &store.FindCapturedContact{UserID: &thread.UserID})
	if err != nil {
		logger.Warn("failed to check captured contacts", "error", err)
		return
	}
	if len(captured) > 0 {
		return
	}

	reply, err := s.turns.HandleTurn(ctx, thread.UserID, thread.Username, prompt)
	if err != nil {
		// Busy means the user just came back; either way, retry on the
		// next scan.
		logger.Warn("reminder turn failed", "error", err)
		return
	}

	if err := s.outbound.SendMessage(ctx, thread.UserID, reply.Text); err != nil {
		logger.Warn("failed to deliver reminder", "error", err)
	}

	// Mark the stage even when delivery failed: the remote thread already
	// contains the reminder exchange.
	ts := now.Unix()
	update := &store.UpdateUserThread{UserID: thread.UserID}
	if stage == 1 {
		update.FirstReminderTs = &ts
	} else {
		update.SecondReminderTs = &ts
	}
	if err := s.threads.UpdateUserThread(ctx, update); err != nil {
		logger.Warn("failed to mark reminder stage", "error", err)
		return
	}
	logger.Info("reminder sent")
}

// dueStage decides which reminder stage, if any, the thread is due for.
func (s *Service) dueStage(thread *store.UserThread, now time.Time) (int, string) {
	inactive := now.Sub(time.Unix(thread.LastActiveTs, 0))

	switch {
	case thread.SecondReminderTs != 0:
		// Ladder exhausted; a fresh turn from the user resets both marks.
		return 0, ""
	case thread.FirstReminderTs == 0 && inactive >= s.cfg.FirstAfter:
		return 1, s.cfg.FirstPrompt
	case thread.FirstReminderTs != 0 && inactive >= s.cfg.SecondAfter:
		return 2, s.cfg.SecondPrompt
	default:
		return 0, ""
	}
}
