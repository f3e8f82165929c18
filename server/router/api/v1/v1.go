// Package v1 exposes the JSON admin and inbound API over echo.
package v1

import (
	"context"
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/AVas112/MainBot/internal/profile"
	"github.com/AVas112/MainBot/plugin/assistant"
	"github.com/AVas112/MainBot/store"
)

// TurnService runs conversation turns and reports orchestrator counters.
// *assistant.Registry satisfies it.
type TurnService interface {
	HandleTurn(ctx context.Context, userID, username, text string) (*assistant.Reply, error)
	Stats() assistant.Stats
	Evict(userID string) bool
}

// DialogStore reads persisted dialogs and contacts. *store.Store satisfies it.
type DialogStore interface {
	ListDialogMessages(ctx context.Context, find *store.FindDialogMessage) ([]*store.DialogMessage, error)
	ListCapturedContacts(ctx context.Context, find *store.FindCapturedContact) ([]*store.CapturedContact, error)
}

// ReportRunner triggers the daily report out of schedule.
// *report.Service satisfies it.
type ReportRunner interface {
	RunOnce(ctx context.Context) error
}

type APIV1Service struct {
	Secret  string
	Profile *profile.Profile
	Store   DialogStore
	Turns   TurnService
	Reports ReportRunner
}

func NewAPIV1Service(secret string, profile *profile.Profile, store DialogStore, turns TurnService, reports ReportRunner) *APIV1Service {
	return &APIV1Service{
		Secret:  secret,
		Profile: profile,
		Store:   store,
		Turns:   turns,
		Reports: reports,
	}
}

// Register mounts the API routes on the echo server.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	group := echoServer.Group("/api/v1", middleware.KeyAuth(s.validateToken))

	group.POST("/turns", s.handleTurn)
	group.GET("/dialogs", s.listDialogs)
	group.GET("/dialogs/:userID", s.getDialog)
	group.GET("/contacts", s.listContacts)
	group.GET("/stats", s.getStats)
	group.DELETE("/sessions/:userID", s.evictSession)
	group.POST("/reports/run", s.runReport)
}

func (s *APIV1Service) validateToken(token string, _ echo.Context) (bool, error) {
	if s.Secret == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.Secret)) == 1, nil
}
