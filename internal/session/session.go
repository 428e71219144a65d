// Package session remembers the last text each user submitted, so a menu
// button pressed later can be applied to it.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps one pending text per user in Redis with a TTL.
type Store struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewStore(client redis.Cmdable, prefix string, ttl time.Duration) *Store {
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(userID int64) string {
	return fmt.Sprintf("%s:session:%d", s.prefix, userID)
}

// SaveText replaces the user's pending text and restarts its TTL.
func (s *Store) SaveText(ctx context.Context, userID int64, text string) error {
	key := s.key(userID)
	if err := s.client.Set(ctx, key, text, s.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Text returns the user's pending text, or "" if none is stored or it expired.
func (s *Store) Text(ctx context.Context, userID int64) (string, error) {
	key := s.key(userID)
	text, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return text, nil
}
