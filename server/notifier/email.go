package notifier

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/AVas112/MainBot/store"
)

// SMTPConfig carries the mail transport settings.
type SMTPConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	// To is the operator address that receives notifications.
	To string
}

// DialogSource supplies the dialog history included in contact emails.
// *store.Store satisfies it.
type DialogSource interface {
	ListDialogMessages(ctx context.Context, find *store.FindDialogMessage) ([]*store.DialogMessage, error)
}

// sendFunc matches smtp.SendMail and is injectable for tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSink mails captured contacts and escalations to the operator,
// attaching the user's dialog transcript.
type EmailSink struct {
	cfg     SMTPConfig
	dialogs DialogSource
	send    sendFunc
	logger  *slog.Logger
}

func NewEmailSink(cfg SMTPConfig, dialogs DialogSource) *EmailSink {
	return &EmailSink{
		cfg:     cfg,
		dialogs: dialogs,
		send:    smtp.SendMail,
		logger:  slog.Default(),
	}
}

func (s *EmailSink) ContactCaptured(ctx context.Context, event ContactEvent) error {
	var b strings.Builder
	b.WriteString("<h2>New contact captured</h2>")
	b.WriteString("<table border=\"1\" cellpadding=\"4\">")
	writeRow(&b, "User", event.Username)
	writeRow(&b, "User ID", event.UserID)
	writeRow(&b, "Name", event.Contact.Name)
	writeRow(&b, "Phone", event.Contact.Phone)
	writeRow(&b, "Email", event.Contact.Email)
	writeRow(&b, "Captured at", event.CapturedAt.Format(time.RFC3339))
	b.WriteString("</table>")

	if transcript := s.transcript(ctx, event.UserID); transcript != "" {
		b.WriteString("<h3>Dialog transcript</h3>")
		b.WriteString(transcript)
	}

	subject := fmt.Sprintf("New contact: %s", event.Contact.Name)
	return s.sendHTML(subject, b.String())
}

func (s *EmailSink) Escalate(_ context.Context, event EscalationEvent) error {
	var b strings.Builder
	b.WriteString("<h2>Escalation</h2>")
	b.WriteString("<table border=\"1\" cellpadding=\"4\">")
	writeRow(&b, "User", event.Username)
	writeRow(&b, "User ID", event.UserID)
	writeRow(&b, "Reason", event.Reason)
	writeRow(&b, "Occurred at", event.OccurredAt.Format(time.RFC3339))
	b.WriteString("</table>")

	return s.sendHTML("Dialog escalation", b.String())
}

// SendReport mails an already rendered HTML report.
func (s *EmailSink) SendReport(subject, htmlBody string) error {
	return s.sendHTML(subject, htmlBody)
}

func (s *EmailSink) transcript(ctx context.Context, userID string) string {
	if s.dialogs == nil {
		return ""
	}

	messages, err := s.dialogs.ListDialogMessages(ctx, &store.FindDialogMessage{UserID: &userID})
	if err != nil {
		s.logger.Warn("failed to load dialog transcript for email", "user_id", userID, "error", err)
		return ""
	}
	if len(messages) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<ul>")
	for _, m := range messages {
		ts := time.Unix(m.CreatedTs, 0).UTC().Format("2006-01-02 15:04")
		fmt.Fprintf(&b, "<li><b>%s</b> [%s]: %s</li>", html.EscapeString(string(m.Role)), ts, html.EscapeString(m.Content))
	}
	b.WriteString("</ul>")
	return b.String()
}

func (s *EmailSink) sendHTML(subject, body string) error {
	from := s.cfg.Username

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", s.cfg.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Server)
	return s.send(addr, auth, from, []string{s.cfg.To}, []byte(msg.String()))
}

func writeRow(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "<tr><td><b>%s</b></td><td>%s</td></tr>", label, html.EscapeString(value))
}

var _ Sink = (*EmailSink)(nil)
