package assistant

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// RegistryOptions wires a Registry.
type RegistryOptions struct {
	Client     Client
	Dispatcher *Dispatcher
	Poller     PollerConfig

	// MaxSessions bounds resident sessions; idle sessions beyond the cap
	// are evicted LRU-first (default: 1000).
	MaxSessions int
	// MaxConcurrentTurns bounds in-flight turns across all users
	// (default: 64).
	MaxConcurrentTurns int

	Threads  ThreadStore
	Dialogs  DialogRecorder
	Renderer Renderer
}

// Stats is the registry's read-only view for the admin surface.
type Stats struct {
	ResidentSessions int   `json:"resident_sessions"`
	TurnsTotal       int64 `json:"turns_total"`
	TurnsFailed      int64 `json:"turns_failed"`
	SessionsEvicted  int64 `json:"sessions_evicted"`
}

// Registry is the process-wide map from user identity to conversation
// session. Its lock is held only for lookup/insert/evict, never across a
// network call, so turns for different users proceed fully in parallel.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int

	turnSem *semaphore.Weighted

	client   Client
	poller   *Poller
	threads  ThreadStore
	dialogs  DialogRecorder
	renderer Renderer

	turnsTotal  atomic.Int64
	turnsFailed atomic.Int64
	evicted     atomic.Int64
}

type registryEntry struct {
	userID  string
	session *Session
}

// NewRegistry creates a session registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1000
	}
	if opts.MaxConcurrentTurns <= 0 {
		opts.MaxConcurrentTurns = 64
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = NewDispatcher()
	}

	return &Registry{
		sessions: make(map[string]*list.Element),
		order:    list.New(),
		capacity: opts.MaxSessions,
		turnSem:  semaphore.NewWeighted(int64(opts.MaxConcurrentTurns)),
		client:   opts.Client,
		poller:   NewPoller(opts.Client, dispatcher, opts.Poller),
		threads:  opts.Threads,
		dialogs:  opts.Dialogs,
		renderer: opts.Renderer,
	}
}

// HandleTurn resolves the user's session (creating it on first contact)
// and runs one turn through it.
func (r *Registry) HandleTurn(ctx context.Context, userID, username, text string) (*Reply, error) {
	if err := r.turnSem.Acquire(ctx, 1); err != nil {
		return nil, turnErr(TurnErrorTimeout, err)
	}
	defer r.turnSem.Release(1)

	session := r.getOrCreate(userID, username)
	defer session.unpin()

	r.turnsTotal.Add(1)
	reply, err := session.HandleTurn(ctx, text)
	if err != nil {
		r.turnsFailed.Add(1)
		return nil, err
	}
	return reply, nil
}

// getOrCreate returns the user's session, creating and inserting it under
// the registry lock. The lock is released before any network activity.
// The returned session is pinned against eviction; the caller must unpin
// it once the turn is over.
func (r *Registry) getOrCreate(userID, username string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if element, ok := r.sessions[userID]; ok {
		r.order.MoveToFront(element)
		session := element.Value.(*registryEntry).session
		session.pin()
		return session
	}

	session := newSession(userID, username, r.client, r.poller, r.threads, r.dialogs, r.renderer)
	session.pin()
	element := r.order.PushFront(&registryEntry{userID: userID, session: session})
	r.sessions[userID] = element

	for len(r.sessions) > r.capacity {
		if !r.evictOldestIdle() {
			// Every resident session has a turn in flight; exceed the cap
			// rather than drop an active conversation.
			break
		}
	}
	return session
}

// evictOldestIdle removes the least recently used idle session. Eviction
// drops only the local handle; the remote thread binding is persisted in
// the store and reattached on the user's next message. Pinned sessions are
// skipped: a turn that resolved its session must never race a concurrent
// eviction into a second session on the same thread.
// Must be called with the registry lock held.
func (r *Registry) evictOldestIdle() bool {
	for element := r.order.Back(); element != nil; element = element.Prev() {
		entry := element.Value.(*registryEntry)
		if entry.session.pinned() || !entry.session.idle() {
			continue
		}
		r.order.Remove(element)
		delete(r.sessions, entry.userID)
		r.evicted.Add(1)
		slog.Info("evicted idle session", "user_id", entry.userID, "resident", len(r.sessions))
		return true
	}
	return false
}

// Evict removes a user's session if it is idle. Used by the admin surface.
func (r *Registry) Evict(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	element, ok := r.sessions[userID]
	if !ok {
		return false
	}
	if session := element.Value.(*registryEntry).session; session.pinned() || !session.idle() {
		return false
	}
	r.order.Remove(element)
	delete(r.sessions, userID)
	r.evicted.Add(1)
	return true
}

// SessionCount returns the number of resident sessions.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Stats returns registry counters for the admin surface.
func (r *Registry) Stats() Stats {
	return Stats{
		ResidentSessions: r.SessionCount(),
		TurnsTotal:       r.turnsTotal.Load(),
		TurnsFailed:      r.turnsFailed.Load(),
		SessionsEvicted:  r.evicted.Load(),
	}
}
