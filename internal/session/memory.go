package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cardshop-bot/internal/model"
)

// sessionEntry holds a stored session with its expiration.
type sessionEntry struct {
	session   *FilterSession
	expiresAt time.Time
}

// isExpired checks if the entry has expired. Entries with a zero expiry
// never expire.
func (e *sessionEntry) isExpired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// MemoryStore is an in-memory implementation of Store.
// Use this for development/testing or single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry

	ttl             time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemoryStore creates an in-memory session store. A zero ttl means
// sessions live as long as the process.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:         make(map[string]*sessionEntry),
		ttl:             ttl,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	if ttl > 0 {
		go s.cleanup()
	}

	return s
}

func sessionKey(chatID, id int64) string {
	return fmt.Sprintf("%d:%d", chatID, id)
}

// Put stores a session under its (chat, id) key.
func (s *MemoryStore) Put(ctx context.Context, sess *FilterSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &sessionEntry{session: cloneSession(sess)}
	if s.ttl > 0 {
		entry.expiresAt = time.Now().Add(s.ttl)
	}
	s.entries[sessionKey(sess.ChatID, sess.ID)] = entry
	return nil
}

// Get retrieves a session by (chat, id).
func (s *MemoryStore) Get(ctx context.Context, chatID, id int64) (*FilterSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[sessionKey(chatID, id)]
	if !exists || entry.isExpired() {
		return nil, ErrSessionNotFound
	}
	return cloneSession(entry.session), nil
}

// Update overwrites an existing session.
func (s *MemoryStore) Update(ctx context.Context, sess *FilterSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(sess.ChatID, sess.ID)
	entry, exists := s.entries[key]
	if !exists || entry.isExpired() {
		return ErrSessionNotFound
	}
	entry.session = cloneSession(sess)
	return nil
}

// Close stops the background cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

// cleanup periodically removes expired sessions.
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

// removeExpired removes all expired sessions.
func (s *MemoryStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.entries {
		if entry.isExpired() {
			delete(s.entries, key)
		}
	}
}

func cloneSession(in *FilterSession) *FilterSession {
	out := *in
	out.Items = append([]model.Item(nil), in.Items...)
	return &out
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
