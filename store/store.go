package store

import (
	"context"
	"time"

	"github.com/AVas112/MainBot/internal/profile"
	"github.com/AVas112/MainBot/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Cache for user threads; turn handling reads the thread binding on
	// every turn so hot rows are kept in memory.
	threadCache *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
		threadCache: cache.New(cache.Config{
			DefaultTTL:      10 * time.Minute,
			CleanupInterval: 5 * time.Minute,
			MaxItems:        1000,
		}),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	s.threadCache.Close()
	return s.driver.Close()
}

// Migrate creates the schema if the database has not been initialized yet.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) CreateDialogMessage(ctx context.Context, create *DialogMessage) (*DialogMessage, error) {
	return s.driver.CreateDialogMessage(ctx, create)
}

func (s *Store) ListDialogMessages(ctx context.Context, find *FindDialogMessage) ([]*DialogMessage, error) {
	return s.driver.ListDialogMessages(ctx, find)
}

func (s *Store) CreateCapturedContact(ctx context.Context, create *CapturedContact) (*CapturedContact, error) {
	return s.driver.CreateCapturedContact(ctx, create)
}

func (s *Store) ListCapturedContacts(ctx context.Context, find *FindCapturedContact) ([]*CapturedContact, error) {
	return s.driver.ListCapturedContacts(ctx, find)
}

func (s *Store) UpsertUserThread(ctx context.Context, upsert *UserThread) (*UserThread, error) {
	thread, err := s.driver.UpsertUserThread(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.threadCache.Set(thread.UserID, thread)
	return thread, nil
}

func (s *Store) GetUserThread(ctx context.Context, find *FindUserThread) (*UserThread, error) {
	if find.UserID != nil && find.InactiveSince == nil {
		if cached, ok := s.threadCache.Get(*find.UserID); ok {
			return cached.(*UserThread), nil
		}
	}

	thread, err := s.driver.GetUserThread(ctx, find)
	if err != nil {
		return nil, err
	}
	if thread != nil {
		s.threadCache.Set(thread.UserID, thread)
	}
	return thread, nil
}

func (s *Store) ListUserThreads(ctx context.Context, find *FindUserThread) ([]*UserThread, error) {
	return s.driver.ListUserThreads(ctx, find)
}

func (s *Store) UpdateUserThread(ctx context.Context, update *UpdateUserThread) error {
	if err := s.driver.UpdateUserThread(ctx, update); err != nil {
		return err
	}
	s.threadCache.Delete(update.UserID)
	return nil
}
