// Package report builds the operator's daily dialog digest: every dialog
// message from the last 24 hours, grouped per user, rendered as HTML and
// mailed out at a configured local time.
package report

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/AVas112/MainBot/store"
)

// Mailer delivers a rendered report. *notifier.EmailSink satisfies it.
type Mailer interface {
	SendReport(subject, htmlBody string) error
}

// DialogSource supplies the dialog history. *store.Store satisfies it.
type DialogSource interface {
	ListDialogMessages(ctx context.Context, find *store.FindDialogMessage) ([]*store.DialogMessage, error)
}

// Config sets the daily send time.
type Config struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// Service is the daily report runner.
type Service struct {
	dialogs DialogSource
	mailer  Mailer
	cfg     Config
	logger  *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

func NewService(dialogs DialogSource, mailer Mailer, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		dialogs: dialogs,
		mailer:  mailer,
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// Run blocks until the context is cancelled, sending one report per day at
// the configured local time.
func (s *Service) Run(ctx context.Context) {
	for {
		wait := time.Until(s.nextRun())
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("report service stopped")
			return
		case <-timer.C:
		}

		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("failed to send daily report", "error", err)
		}
	}
}

// RunOnce builds and sends the report for the last 24 hours.
func (s *Service) RunOnce(ctx context.Context) error {
	now := s.now()
	since := now.Add(-24 * time.Hour).Unix()

	messages, err := s.dialogs.ListDialogMessages(ctx, &store.FindDialogMessage{CreatedAfter: &since})
	if err != nil {
		return fmt.Errorf("failed to load dialog messages: %w", err)
	}

	subject := fmt.Sprintf("Dialog report %s", now.In(s.cfg.Location).Format("2006-01-02"))
	body := renderReport(messages, now.In(s.cfg.Location))

	if err := s.mailer.SendReport(subject, body); err != nil {
		return fmt.Errorf("failed to mail report: %w", err)
	}

	s.logger.Info("daily report sent", "messages", len(messages))
	return nil
}

// nextRun returns the next occurrence of the configured local time.
func (s *Service) nextRun() time.Time {
	now := s.now().In(s.cfg.Location)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.Hour, s.cfg.Minute, 0, 0, s.cfg.Location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func renderReport(messages []*store.DialogMessage, generatedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Dialogs for the last 24 hours</h2><p>Generated at %s</p>", generatedAt.Format("2006-01-02 15:04 MST"))

	if len(messages) == 0 {
		b.WriteString("<p>No conversations in this period.</p>")
		return b.String()
	}

	byUser := make(map[string][]*store.DialogMessage)
	for _, m := range messages {
		byUser[m.UserID] = append(byUser[m.UserID], m)
	}

	userIDs := make([]string, 0, len(byUser))
	for id := range byUser {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	fmt.Fprintf(&b, "<p>%d user(s), %d message(s).</p>", len(userIDs), len(messages))

	for _, id := range userIDs {
		dialog := byUser[id]
		title := dialog[0].Username
		if title == "" {
			title = id
		}
		fmt.Fprintf(&b, "<h3>%s (id %s)</h3><ul>", html.EscapeString(title), html.EscapeString(id))
		for _, m := range dialog {
			ts := time.Unix(m.CreatedTs, 0).In(generatedAt.Location()).Format("15:04")
			fmt.Fprintf(&b, "<li><b>%s</b> [%s]: %s</li>", html.EscapeString(string(m.Role)), ts, html.EscapeString(m.Content))
		}
		b.WriteString("</ul>")
	}

	return b.String()
}
