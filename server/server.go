// Package server assembles the conversation orchestrator, its store, the
// notification sinks, the background services, and the HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/AVas112/MainBot/internal/profile"
	"github.com/AVas112/MainBot/plugin/assistant"
	"github.com/AVas112/MainBot/plugin/assistant/tools"
	"github.com/AVas112/MainBot/plugin/markdown"
	servermw "github.com/AVas112/MainBot/server/middleware"
	"github.com/AVas112/MainBot/server/notifier"
	"github.com/AVas112/MainBot/server/reminder"
	"github.com/AVas112/MainBot/server/report"
	apiv1 "github.com/AVas112/MainBot/server/router/api/v1"
	"github.com/AVas112/MainBot/store"
)

type Server struct {
	Profile  *profile.Profile
	Store    *store.Store
	Registry *assistant.Registry

	echoServer *echo.Echo
	reminder   *reminder.Service
	report     *report.Service
}

// Option customizes server assembly.
type Option func(*options)

type options struct {
	outbound reminder.Outbound
	client   assistant.Client
}

// WithOutbound wires the chat transport used to deliver reminder texts.
func WithOutbound(outbound reminder.Outbound) Option {
	return func(o *options) {
		o.outbound = outbound
	}
}

// WithAssistantClient overrides the remote assistant client.
func WithAssistantClient(client assistant.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

func NewServer(ctx context.Context, profile *profile.Profile, storeInstance *store.Store, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		Profile: profile,
		Store:   storeInstance,
	}

	if err := storeInstance.Migrate(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	client := o.client
	if client == nil {
		var err error
		client, err = assistant.NewOpenAIClient(assistant.ClientConfig{
			APIKey:            profile.AssistantAPIKey,
			AssistantID:       profile.AssistantID,
			BaseURL:           profile.AssistantBaseURL,
			ProxyURL:          profile.AssistantProxy,
			RequestsPerSecond: profile.AssistantRPS,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create assistant client")
		}
	}

	sink := s.buildSink()

	dispatcher := assistant.NewDispatcher()
	dispatcher.Register(tools.ContactCaptureToolName, tools.NewContactCapture(
		&storeContacts{store: storeInstance},
		&sinkNotifier{sink: sink},
	))

	s.Registry = assistant.NewRegistry(assistant.RegistryOptions{
		Client:     client,
		Dispatcher: dispatcher,
		Poller: assistant.PollerConfig{
			BaseInterval: profile.PollBaseInterval,
			MaxInterval:  profile.PollMaxInterval,
			RunTimeout:   profile.RunTimeout,
			RetryBudget:  profile.RetryBudget,
		},
		MaxSessions:        profile.MaxSessions,
		MaxConcurrentTurns: profile.MaxConcurrentTurns,
		Threads:            &storeThreads{store: storeInstance},
		Dialogs:            &storeDialogs{store: storeInstance},
		Renderer:           markdown.NewService(markdown.WithAnnotationStripping()),
	})

	if profile.ReportEnabled && s.mailConfigured() {
		location, err := time.LoadLocation(profile.ReportTimezone)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid report timezone: %s", profile.ReportTimezone)
		}
		s.report = report.NewService(storeInstance, s.emailSink(), report.Config{
			Hour:     profile.ReportHour,
			Minute:   profile.ReportMinute,
			Location: location,
		})
	}

	if profile.ReminderEnabled {
		outbound := o.outbound
		if outbound == nil {
			outbound = logOutbound{}
		}
		s.reminder = reminder.NewService(storeInstance, storeInstance, s.Registry, outbound, reminder.Config{
			Interval:     profile.ReminderInterval,
			FirstAfter:   profile.FirstReminderAfter,
			SecondAfter:  profile.SecondReminderAfter,
			FirstPrompt:  profile.FirstReminderPrompt,
			SecondPrompt: profile.SecondReminderPrompt,
		})
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(servermw.RequestLogger(slog.Default()))
	echoServer.Use(servermw.NewRateLimiter(float64(profile.AssistantRPS), 2*profile.AssistantRPS).PerClient())

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	var reports apiv1.ReportRunner
	if s.report != nil {
		reports = s.report
	}
	apiService := apiv1.NewAPIV1Service(profile.AdminToken, profile, storeInstance, s.Registry, reports)
	apiService.Register(echoServer)

	s.echoServer = echoServer
	return s, nil
}

// Start runs the HTTP server and background services until the context is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	if s.reminder != nil {
		group.Go(func() error {
			s.reminder.Run(ctx)
			return nil
		})
	}
	if s.report != nil {
		group.Go(func() error {
			s.report.Run(ctx)
			return nil
		})
	}

	group.Go(func() error {
		address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
		slog.Info("server started", "address", address, "version", s.Profile.Version)
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "failed to start server")
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echoServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// Shutdown releases resources after Start has returned.
func (s *Server) Shutdown() {
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server shutdown complete")
}

func (s *Server) mailConfigured() bool {
	return s.Profile.SMTPServer != "" && s.Profile.NotificationEmail != ""
}

func (s *Server) emailSink() *notifier.EmailSink {
	return notifier.NewEmailSink(notifier.SMTPConfig{
		Server:   s.Profile.SMTPServer,
		Port:     s.Profile.SMTPPort,
		Username: s.Profile.SMTPUsername,
		Password: s.Profile.SMTPPassword,
		To:       s.Profile.NotificationEmail,
	}, s.Store)
}

// buildSink assembles the notification fan-out: the structured log always
// receives events, email is added when SMTP is configured.
func (s *Server) buildSink() notifier.Sink {
	logSink := notifier.NewLogSink(nil)
	if !s.mailConfigured() {
		return logSink
	}
	return notifier.NewMultiSink(logSink, s.emailSink())
}
