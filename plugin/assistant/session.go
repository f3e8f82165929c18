package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// ThreadStore persists the user-to-thread binding so that evicting a
// session from memory never loses the remote thread identity.
type ThreadStore interface {
	// GetThreadID returns the stored thread ID for a user, or "" if none.
	GetThreadID(ctx context.Context, userID string) (string, error)
	// UpsertThread stores the binding and activity bookkeeping for a user.
	UpsertThread(ctx context.Context, userID, username, threadID string, lastActive time.Time) error
}

// DialogRecorder appends messages to the dialog history. Recording is best
// effort from the orchestrator's perspective: a recorder failure is logged
// and never fails the user-facing turn.
type DialogRecorder interface {
	RecordMessage(ctx context.Context, userID, username, role, content string) error
}

// Renderer converts the assistant's raw markdown reply into chat-safe HTML.
type Renderer interface {
	RenderChatHTML(text string) (string, error)
}

// Session serializes all activity on one user's thread: message post, run
// creation, polling, tool dispatch and reply retrieval all happen under the
// session's lock, never a global one.
type Session struct {
	userID   string
	username string

	client   Client
	poller   *Poller
	threads  ThreadStore
	dialogs  DialogRecorder
	renderer Renderer
	logger   *slog.Logger

	// mu is the per-session serialization lock. HandleTurn acquires it with
	// TryLock so a concurrent turn is rejected as Busy, never queued.
	mu        sync.Mutex
	threadID  string
	activeRun string
	turnSeq   int64

	// lastActive is read by the registry's idle-eviction pass without
	// taking mu.
	activityMu sync.Mutex
	lastActive time.Time

	// pins counts turns that have resolved this session but not finished
	// with it yet. Taken under the registry lock, so eviction can never
	// drop a session between lookup and lock acquisition.
	pins atomic.Int32
}

func newSession(userID, username string, client Client, poller *Poller, threads ThreadStore, dialogs DialogRecorder, renderer Renderer) *Session {
	return &Session{
		userID:     userID,
		username:   username,
		client:     client,
		poller:     poller,
		threads:    threads,
		dialogs:    dialogs,
		renderer:   renderer,
		logger:     slog.With("user_id", userID),
		lastActive: time.Now(),
	}
}

// UserID returns the session's user identity.
func (s *Session) UserID() string {
	return s.userID
}

// LastActive returns the time of the last completed or attempted turn.
func (s *Session) LastActive() time.Time {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.activityMu.Lock()
	s.lastActive = time.Now()
	s.activityMu.Unlock()
}

func (s *Session) pin() { s.pins.Add(1) }

func (s *Session) unpin() { s.pins.Add(-1) }

// pinned reports whether any turn currently holds a reference to this
// session.
func (s *Session) pinned() bool {
	return s.pins.Load() > 0
}

// idle reports whether no turn is in flight. Used by the registry's
// eviction pass; the lock is held only for the check itself.
func (s *Session) idle() bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	return s.activeRun == ""
}

// HandleTurn runs one full conversation turn: post the user's message,
// create a run, poll it to completion, and return the assistant's reply
// together with any structured extraction results. A second HandleTurn
// while the first is in flight returns TurnError(Busy) without touching
// the remote service.
func (s *Session) HandleTurn(ctx context.Context, text string) (*Reply, error) {
	if !s.mu.TryLock() {
		return nil, turnErr(TurnErrorBusy, fmt.Errorf("a run is already active for user %s", s.userID))
	}
	defer s.mu.Unlock()

	s.touch()
	s.turnSeq++
	logger := s.logger.With("turn", s.turnSeq, "turn_id", shortuuid.New())

	// One wall-clock ceiling covers the whole turn, reconciliation of a
	// leftover run included, so an orphan never doubles the user's wait.
	ctx, cancel := context.WithTimeout(ctx, s.poller.cfg.RunTimeout)
	defer cancel()

	effects := &TurnEffects{Username: s.username}
	ctx = WithEffects(ctx, effects)

	// A leftover run from a cancelled or timed-out turn must be reconciled
	// before anything is posted to the thread.
	if s.activeRun != "" {
		if terr := s.reconcileOrphan(ctx, logger); terr != nil {
			return nil, terr
		}
	}

	if err := s.ensureThread(ctx, logger); err != nil {
		return nil, err
	}

	if err := s.poller.retryTransient(ctx, func() error {
		_, err := s.client.PostMessage(ctx, s.threadID, text)
		return err
	}); err != nil {
		logger.Error("failed to post message", "error", err)
		return nil, mapClientError(err)
	}

	// The transcript carries only messages the remote actually accepted.
	s.recordMessage(ctx, "user", text, logger)

	var runID string
	if err := s.poller.retryTransient(ctx, func() error {
		id, err := s.client.CreateRun(ctx, s.threadID)
		if err != nil {
			return err
		}
		runID = id
		return nil
	}); err != nil {
		logger.Error("failed to create run", "error", err)
		return nil, mapClientError(err)
	}
	s.activeRun = runID
	logger.Info("run created", "run_id", runID)

	if err := s.poller.Poll(ctx, s.userID, s.threadID, runID); err != nil {
		terr, _ := AsTurnError(err)
		if terr != nil && terr.Category == TurnErrorTimeout {
			// The remote run may still be progressing; keep the handle so
			// the next turn reconciles it instead of starting a second run
			// on the same thread.
			logger.Warn("run timed out locally, keeping orphaned run handle", "run_id", runID)
		} else {
			s.activeRun = ""
		}
		return nil, err
	}
	s.activeRun = ""

	reply, err := s.fetchReply(ctx, logger)
	if err != nil {
		return nil, err
	}

	s.recordMessage(ctx, "assistant", reply, logger)
	s.persistThread(ctx, logger)

	return &Reply{Text: reply, Contacts: effects.Contacts()}, nil
}

// reconcileOrphan resolves a run left active by a previous cancelled or
// timed-out turn: read its status, wait it out if it is still progressing,
// and discard the handle once terminal.
func (s *Session) reconcileOrphan(ctx context.Context, logger *slog.Logger) *TurnError {
	logger.Info("reconciling orphaned run", "run_id", s.activeRun)

	state, err := s.client.GetRunState(ctx, s.threadID, s.activeRun)
	if err != nil {
		if IsTransient(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return turnErr(TurnErrorTimeout, fmt.Errorf("orphaned run status unavailable: %w", err))
		}
		// The run is gone on the remote side (expired, deleted); safe to
		// discard the local handle and continue.
		logger.Warn("orphaned run lookup failed fatally, discarding handle", "error", err)
		s.activeRun = ""
		return nil
	}

	if !state.Status.Terminal() {
		if err := s.poller.Poll(ctx, s.userID, s.threadID, s.activeRun); err != nil {
			terr, _ := AsTurnError(err)
			if terr != nil && terr.Category == TurnErrorTimeout {
				return terr
			}
			// Terminal failure of the orphan; the thread is free again.
		}
	}
	s.activeRun = ""
	return nil
}

// ensureThread lazily creates the remote thread on the first message from
// a user, consulting the store first so an evicted session reattaches to
// its existing thread instead of losing the conversation.
func (s *Session) ensureThread(ctx context.Context, logger *slog.Logger) error {
	if s.threadID != "" {
		return nil
	}

	if s.threads != nil {
		stored, err := s.threads.GetThreadID(ctx, s.userID)
		if err != nil {
			logger.Warn("failed to load stored thread, creating a new one", "error", err)
		} else if stored != "" {
			s.threadID = stored
			logger.Info("reattached to stored thread", "thread_id", stored)
			return nil
		}
	}

	var threadID string
	if err := s.poller.retryTransient(ctx, func() error {
		id, err := s.client.CreateThread(ctx, s.userID)
		if err != nil {
			return err
		}
		threadID = id
		return nil
	}); err != nil {
		logger.Error("failed to create thread", "error", err)
		return mapClientError(err)
	}
	s.threadID = threadID
	logger.Info("thread created", "thread_id", threadID)

	s.persistThread(ctx, logger)
	return nil
}

// fetchReply retrieves and renders the final assistant message.
func (s *Session) fetchReply(ctx context.Context, logger *slog.Logger) (string, error) {
	var raw string
	if err := s.poller.retryTransient(ctx, func() error {
		text, err := s.client.GetLatestMessage(ctx, s.threadID)
		if err != nil {
			return err
		}
		raw = text
		return nil
	}); err != nil {
		logger.Error("failed to fetch assistant reply", "error", err)
		return "", mapClientError(err)
	}

	if s.renderer == nil {
		return raw, nil
	}
	rendered, err := s.renderer.RenderChatHTML(raw)
	if err != nil {
		logger.Warn("reply rendering failed, returning raw text", "error", err)
		return raw, nil
	}
	return rendered, nil
}

func (s *Session) recordMessage(ctx context.Context, role, content string, logger *slog.Logger) {
	if s.dialogs == nil {
		return
	}
	if err := s.dialogs.RecordMessage(ctx, s.userID, s.username, role, content); err != nil {
		logger.Warn("failed to record dialog message", "role", role, "error", err)
	}
}

func (s *Session) persistThread(ctx context.Context, logger *slog.Logger) {
	if s.threads == nil {
		return
	}
	if err := s.threads.UpsertThread(ctx, s.userID, s.username, s.threadID, time.Now()); err != nil {
		logger.Warn("failed to persist thread binding", "error", err)
	}
}
