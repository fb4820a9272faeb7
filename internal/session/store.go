package session

import (
	"context"
	"time"

	"cardshop-bot/internal/model"
)

// FilterSession is a paged view over a search result set, navigated with a
// circular cursor. One session is created per search query.
type FilterSession struct {
	ID        int64        `json:"id"`
	ChatID    int64        `json:"chat_id"`
	Title     string       `json:"title"`
	Items     []model.Item `json:"items"`
	Cursor    int          `json:"cursor"`
	CreatedAt time.Time    `json:"created_at"`
}

// Store is the ephemeral, chat-scoped keyed storage for filter sessions.
// This abstraction allows swapping between memory store (development)
// and Redis store (production) without changing business logic.
type Store interface {
	// Put stores a session under its (chat, id) key.
	Put(ctx context.Context, s *FilterSession) error

	// Get retrieves a session. Returns ErrSessionNotFound if missing.
	Get(ctx context.Context, chatID, id int64) (*FilterSession, error)

	// Update overwrites an existing session (cursor moves).
	Update(ctx context.Context, s *FilterSession) error
}

// Session errors
type StoreError string

func (e StoreError) Error() string { return string(e) }

const (
	// ErrSessionNotFound indicates an unknown or evicted session id.
	ErrSessionNotFound StoreError = "filter session not found"
)

// NewID derives a session id from the creation time. Effectively unique
// within one chat's practical session lifetime; collisions are an accepted
// limitation, not a correctness requirement.
func NewID(now time.Time) int64 {
	return now.UnixMilli() % 100000
}
