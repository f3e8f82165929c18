package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// DialogMessage model related methods.
	CreateDialogMessage(ctx context.Context, create *DialogMessage) (*DialogMessage, error)
	ListDialogMessages(ctx context.Context, find *FindDialogMessage) ([]*DialogMessage, error)

	// CapturedContact model related methods.
	CreateCapturedContact(ctx context.Context, create *CapturedContact) (*CapturedContact, error)
	ListCapturedContacts(ctx context.Context, find *FindCapturedContact) ([]*CapturedContact, error)

	// UserThread model related methods.
	UpsertUserThread(ctx context.Context, upsert *UserThread) (*UserThread, error)
	GetUserThread(ctx context.Context, find *FindUserThread) (*UserThread, error)
	ListUserThreads(ctx context.Context, find *FindUserThread) ([]*UserThread, error)
	UpdateUserThread(ctx context.Context, update *UpdateUserThread) error
}
