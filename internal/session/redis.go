package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix is the Redis key prefix for filter sessions.
const RedisKeyPrefix = "cardshop:session:"

// DefaultRedisTTL bounds session lifetime in Redis so abandoned searches
// do not accumulate.
const DefaultRedisTTL = 24 * time.Hour

// RedisStore is a Redis-backed implementation of Store, for deployments
// that restart the bot without losing open search sessions.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis session store. A zero ttl selects
// DefaultRedisTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	log.Printf("[RedisStore] Session store initialized, ttl=%v", ttl)
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(chatID, id int64) string {
	return fmt.Sprintf("%s%d:%d", RedisKeyPrefix, chatID, id)
}

// Put stores a session under its (chat, id) key.
func (s *RedisStore) Put(ctx context.Context, sess *FilterSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ChatID, sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get retrieves a session by (chat, id).
func (s *RedisStore) Get(ctx context.Context, chatID, id int64) (*FilterSession, error) {
	data, err := s.client.Get(ctx, s.key(chatID, id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess FilterSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &sess, nil
}

// Update overwrites an existing session, keeping its remaining TTL.
func (s *RedisStore) Update(ctx context.Context, sess *FilterSession) error {
	key := s.key(sess.ChatID, sess.ID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := s.client.Set(ctx, key, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
