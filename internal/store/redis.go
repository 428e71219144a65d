package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// RedisStore keeps each document in a Redis hash so HSET gives partial-merge updates.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store whose keys live under the given prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) userKey(userID int64) string {
	return fmt.Sprintf("%s_users:%d", s.prefix, userID)
}

func (s *RedisStore) statsKey() string {
	return s.prefix + "_stats"
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, key, ErrUnavailable, err)
}

func (s *RedisStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	key := s.userKey(userID)
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, unavailable("hgetall", key, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return parseUser(userID, vals), nil
}

func (s *RedisStore) UpdateUser(ctx context.Context, userID int64, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	key := s.userKey(userID)
	if err := s.client.HSet(ctx, key, map[string]any(fields)).Err(); err != nil {
		return unavailable("hset", key, err)
	}
	return nil
}

func (s *RedisStore) DeleteUserFields(ctx context.Context, userID int64, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	key := s.userKey(userID)
	if err := s.client.HDel(ctx, key, fields...).Err(); err != nil {
		return unavailable("hdel", key, err)
	}
	return nil
}

// ScanUsers calls fn for every user document. Iteration stops at the first error fn returns.
func (s *RedisStore) ScanUsers(ctx context.Context, fn func(*User) error) error {
	prefix := s.prefix + "_users:"
	iter := s.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id, err := strconv.ParseInt(strings.TrimPrefix(key, prefix), 10, 64)
		if err != nil {
			slog.Warn("store: skipping key with non-numeric user id", "key", key)
			continue
		}
		vals, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return unavailable("hgetall", key, err)
		}
		if len(vals) == 0 {
			continue
		}
		if err := fn(parseUser(id, vals)); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return unavailable("scan", prefix+"*", err)
	}
	return nil
}

func (s *RedisStore) GetStats(ctx context.Context) (*Stats, error) {
	key := s.statsKey()
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, unavailable("hgetall", key, err)
	}
	st := &Stats{}
	st.TotalRequests, _ = parseInt(vals, FieldTotalRequests)
	st.DailyRequests, _ = parseInt(vals, FieldDailyRequests)
	st.UpdatedAt, _ = parseInt(vals, FieldUpdatedAt)
	return st, nil
}

func (s *RedisStore) UpdateStats(ctx context.Context, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	key := s.statsKey()
	if err := s.client.HSet(ctx, key, map[string]any(fields)).Err(); err != nil {
		return unavailable("hset", key, err)
	}
	return nil
}

func (s *RedisStore) IncrStats(ctx context.Context, field string, delta int64) error {
	key := s.statsKey()
	if err := s.client.HIncrBy(ctx, key, field, delta).Err(); err != nil {
		return unavailable("hincrby", key, err)
	}
	return nil
}

func parseUser(id int64, vals map[string]string) *User {
	u := &User{
		ID:       id,
		Username: vals[FieldUsername],
		APIKey:   vals[FieldAPIKey],
	}

	var ok bool
	var count int64
	if count, ok = parseInt(vals, FieldRequestCount); !ok {
		u.Malformed = true
	}
	u.RequestCount = int(count)
	if u.ResetTime, ok = parseInt(vals, FieldResetTime); !ok {
		u.Malformed = true
	}
	if u.LastRequest, ok = parseInt(vals, FieldLastRequest); !ok {
		u.Malformed = true
	}
	if u.IsPremium, ok = parseBool(vals, FieldIsPremium); !ok {
		u.Malformed = true
	}
	u.StartedChat, _ = parseBool(vals, FieldStartedChat)
	u.IsBanned, _ = parseBool(vals, FieldIsBanned)
	u.LastActive, _ = parseInt(vals, FieldLastActive)

	if u.Malformed {
		slog.Warn("store: malformed user document", "user_id", id)
	}
	return u
}

// parseInt reports ok=false only when the field is present and unparsable.
// Absent and empty fields yield zero. Floats are truncated.
func parseInt(vals map[string]string, field string) (int64, bool) {
	raw, present := vals[field]
	if !present || raw == "" {
		return 0, true
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

func parseBool(vals map[string]string, field string) (bool, bool) {
	raw, present := vals[field]
	if !present || raw == "" {
		return false, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return b, true
}
