package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSessionPrefix = "session:"

// RedisSessionStore keeps sessions as Redis keys whose TTL is the inactivity window.
type RedisSessionStore struct {
	rc *redis.Client
}

// NewRedisSessionStore wraps an existing client.
func NewRedisSessionStore(rc *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rc: rc}
}

func (r *RedisSessionStore) key(sessionID string) string {
	return redisSessionPrefix + sessionKey(sessionID)
}

func (r *RedisSessionStore) Save(ctx context.Context, sessionID string, userID uint, ttl time.Duration) error {
	if err := r.rc.Set(ctx, r.key(sessionID), strconv.FormatUint(uint64(userID), 10), ttl).Err(); err != nil {
		return fmt.Errorf("redis session save: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Lookup(ctx context.Context, sessionID string) (uint, error) {
	v, err := r.rc.Get(ctx, r.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis session lookup: %w", err)
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrSessionNotFound
	}
	return uint(id), nil
}

func (r *RedisSessionStore) Touch(ctx context.Context, sessionID string, ttl time.Duration) error {
	ok, err := r.rc.Expire(ctx, r.key(sessionID), ttl).Result()
	if err != nil {
		return fmt.Errorf("redis session touch: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RedisSessionStore) Destroy(ctx context.Context, sessionID string) error {
	if err := r.rc.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis session destroy: %w", err)
	}
	return nil
}
