package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/RoleGate/rolegate/internal/domain/session"
)

// DefaultCleanupInterval is the default period of the expired-session
// sweep.
const DefaultCleanupInterval = 1 * time.Minute

// SessionStore implements session.Store with an in-memory map.
// A background cleanup goroutine removes idled-out sessions
// periodically.
type SessionStore struct {
	mu              sync.RWMutex
	sessions        map[string]*session.Session
	stopChan        chan struct{}
	wg              sync.WaitGroup
	cleanupInterval time.Duration
	once            sync.Once // Prevent double-close panic on Stop()
	evictFn         func(*session.Session)
}

// NewSessionStore creates a new in-memory session store with the
// default cleanup interval.
func NewSessionStore() *SessionStore {
	return NewSessionStoreWithConfig(DefaultCleanupInterval)
}

// NewSessionStoreWithConfig creates a new in-memory session store with
// a custom cleanup interval.
func NewSessionStoreWithConfig(cleanupInterval time.Duration) *SessionStore {
	return &SessionStore{
		sessions:        make(map[string]*session.Session),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}
}

// StartCleanup starts the background sweep goroutine. Call Stop() to
// stop it gracefully.
func (s *SessionStore) StartCleanup(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}

// Stop terminates the cleanup goroutine and waits for it to exit.
func (s *SessionStore) Stop() {
	s.once.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

// OnEvict registers fn, invoked once for each session the background
// sweep removes while still marked active. Sessions whose expiry a
// caller already observed are not reported again.
func (s *SessionStore) OnEvict(fn func(*session.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictFn = fn
}

// cleanup removes all idled-out sessions from the store.
func (s *SessionStore) cleanup() {
	now := time.Now().UTC()

	s.mu.Lock()
	cleaned := 0
	var evicted []*session.Session
	for id, sess := range s.sessions {
		if sess.IsExpired(now) {
			delete(s.sessions, id)
			if sess.State == session.StateActive {
				evicted = append(evicted, sess)
			}
			cleaned++
		}
	}
	fn := s.evictFn
	s.mu.Unlock()

	if fn != nil {
		for _, sess := range evicted {
			fn(sess)
		}
	}
	if cleaned > 0 {
		slog.Debug("cleaned expired sessions", "count", cleaned)
	}
}

// Create stores a new session.
func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Update saves changes to an existing session.
func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return session.ErrSessionNotFound
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Count returns the number of stored sessions.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
