package assistant

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapThreadStore keeps one thread binding per user, enough for eviction
// and reattachment tests.
type mapThreadStore struct {
	mu      sync.Mutex
	threads map[string]string
}

func newMapThreadStore() *mapThreadStore {
	return &mapThreadStore{threads: make(map[string]string)}
}

func (s *mapThreadStore) GetThreadID(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threads[userID], nil
}

func (s *mapThreadStore) UpsertThread(_ context.Context, userID, _, threadID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[userID] = threadID
	return nil
}

func newTestRegistry(client Client, opts RegistryOptions) *Registry {
	opts.Client = client
	opts.Poller = fastPollerConfig()
	return NewRegistry(opts)
}

func TestRegistryHandleTurn(t *testing.T) {
	client := NewMockClient("hello")
	registry := newTestRegistry(client, RegistryOptions{})

	for _, userID := range []string{"1", "2", "3"} {
		reply, err := registry.HandleTurn(context.Background(), userID, "user-"+userID, "hi")
		require.NoError(t, err)
		assert.Equal(t, "hello", reply.Text)
	}

	stats := registry.Stats()
	assert.Equal(t, 3, stats.ResidentSessions)
	assert.Equal(t, int64(3), stats.TurnsTotal)
	assert.Equal(t, int64(0), stats.TurnsFailed)
}

func TestRegistryReusesSession(t *testing.T) {
	client := NewMockClient("hello")
	registry := newTestRegistry(client, RegistryOptions{})

	_, err := registry.HandleTurn(context.Background(), "1", "alice", "hi")
	require.NoError(t, err)
	_, err = registry.HandleTurn(context.Background(), "1", "alice", "again")
	require.NoError(t, err)

	assert.Equal(t, 1, registry.SessionCount())
	// The second turn reuses the session's thread.
	assert.Equal(t, []string{"thread-1"}, client.CreatedThreads)
}

func TestRegistryEvictsLRUBeyondCap(t *testing.T) {
	client := NewMockClient("hello")
	store := newMapThreadStore()
	registry := newTestRegistry(client, RegistryOptions{MaxSessions: 2, Threads: store})

	for _, userID := range []string{"1", "2", "3"} {
		_, err := registry.HandleTurn(context.Background(), userID, "u", "hi")
		require.NoError(t, err)
	}

	stats := registry.Stats()
	assert.Equal(t, 2, stats.ResidentSessions)
	assert.Equal(t, int64(1), stats.SessionsEvicted)

	// The evicted user reattaches to their persisted thread on return.
	threadsBefore := len(client.CreatedThreads)
	_, err := registry.HandleTurn(context.Background(), "1", "u", "back")
	require.NoError(t, err)
	assert.Equal(t, threadsBefore, len(client.CreatedThreads))
}

func TestRegistryBusySameUser(t *testing.T) {
	client := NewMockClient("hello")
	registry := newTestRegistry(client, RegistryOptions{})

	session := registry.getOrCreate("1", "alice")
	session.unpin()
	session.mu.Lock()
	defer session.mu.Unlock()

	_, err := registry.HandleTurn(context.Background(), "1", "alice", "hi")
	terr, ok := AsTurnError(err)
	require.True(t, ok)
	assert.Equal(t, TurnErrorBusy, terr.Category)
	assert.Equal(t, int64(1), registry.Stats().TurnsFailed)
}

func TestRegistryParallelUsers(t *testing.T) {
	client := NewMockClient("hello")
	registry := newTestRegistry(client, RegistryOptions{MaxConcurrentTurns: 8})

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", i)
			_, errs[i] = registry.HandleTurn(context.Background(), userID, userID, "hi")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "turn %d", i)
	}
	assert.Equal(t, int64(16), registry.Stats().TurnsTotal)
}

func TestRegistryEvict(t *testing.T) {
	client := NewMockClient("hello")
	registry := newTestRegistry(client, RegistryOptions{})

	_, err := registry.HandleTurn(context.Background(), "1", "alice", "hi")
	require.NoError(t, err)

	assert.False(t, registry.Evict("missing"))
	assert.True(t, registry.Evict("1"))
	assert.Equal(t, 0, registry.SessionCount())

	// A busy session is never evicted.
	session := registry.getOrCreate("2", "bob")
	session.unpin()
	session.mu.Lock()
	assert.False(t, registry.Evict("2"))
	session.mu.Unlock()
}

func TestRegistryDoesNotEvictActiveSessions(t *testing.T) {
	client := NewMockClient("hello")
	registry := newTestRegistry(client, RegistryOptions{MaxSessions: 1})

	busy := registry.getOrCreate("1", "alice")
	busy.unpin()
	busy.mu.Lock()
	defer busy.mu.Unlock()

	// Inserting a second session exceeds the cap, but the only candidate
	// has a turn in flight, so the cap is exceeded instead.
	registry.getOrCreate("2", "bob").unpin()
	assert.Equal(t, 2, registry.SessionCount())
	assert.Equal(t, int64(0), registry.Stats().SessionsEvicted)
}

func TestRegistryPinnedSessionSurvivesEviction(t *testing.T) {
	client := NewMockClient("hello")
	store := newMapThreadStore()
	store.threads["1"] = "thread-seeded"
	registry := newTestRegistry(client, RegistryOptions{MaxSessions: 1, Threads: store})

	// A turn for user 1 has resolved its session but not locked it yet:
	// the session is idle, pinned, and must survive the cap pressure from
	// another user's arrival.
	resolved := registry.getOrCreate("1", "alice")
	registry.getOrCreate("2", "bob").unpin()

	registry.mu.Lock()
	_, resident := registry.sessions["1"]
	registry.mu.Unlock()
	assert.True(t, resident)

	// The pending turn still owns the one and only session for user 1, so
	// a second run on thread-seeded is impossible.
	again := registry.getOrCreate("1", "alice")
	assert.Same(t, resolved, again)
	again.unpin()

	// Once the turn releases its pin the session is ordinary LRU fodder.
	resolved.unpin()
	registry.getOrCreate("3", "carol").unpin()
	registry.mu.Lock()
	_, resident = registry.sessions["1"]
	registry.mu.Unlock()
	assert.False(t, resident)
	assert.GreaterOrEqual(t, registry.Stats().SessionsEvicted, int64(1))
}
