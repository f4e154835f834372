package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisFieldAccess  = "access_token"
	redisFieldRefresh = "refresh_token"
	redisFieldExpires = "expires_at"
)

// RedisStore shares the credentials of a connection between processes.
// Credentials live in one hash per connection; the hash expires after the
// configured TTL counted from the last SetTokens.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// Compile-time check to ensure RedisStore implements TokenStore
var _ TokenStore = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore that keeps credentials under key.
// A zero ttl keeps credentials until they are cleared.
func NewRedisStore(client redis.UniversalClient, key string, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if key == "" {
		return nil, fmt.Errorf("redis key cannot be empty")
	}

	return &RedisStore{
		client: client,
		key:    key,
		ttl:    ttl,
	}, nil
}

func (r *RedisStore) field(ctx context.Context, name string) (string, error) {
	value, err := r.client.HGet(ctx, r.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s from redis: %w", name, err)
	}
	return value, nil
}

func (r *RedisStore) AccessToken(ctx context.Context) (string, error) {
	return r.field(ctx, redisFieldAccess)
}

func (r *RedisStore) RefreshToken(ctx context.Context) (string, error) {
	return r.field(ctx, redisFieldRefresh)
}

// ExpiresAt returns the stored expiry. Expiry is kept as Unix milliseconds.
func (r *RedisStore) ExpiresAt(ctx context.Context) (time.Time, error) {
	value, err := r.field(ctx, redisFieldExpires)
	if err != nil || value == "" {
		return time.Time{}, err
	}

	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored expiry %q: %w", value, err)
	}
	if ms == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

func (r *RedisStore) SetTokens(ctx context.Context, accessToken, refreshToken string, expiresAt time.Time) error {
	var expires int64
	if !expiresAt.IsZero() {
		expires = expiresAt.UnixMilli()
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.key, map[string]any{
			redisFieldAccess:  accessToken,
			redisFieldRefresh: refreshToken,
			redisFieldExpires: expires,
		})
		if r.ttl > 0 {
			pipe.Expire(ctx, r.key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing credentials to redis: %w", err)
	}
	return nil
}

func (r *RedisStore) ClearTokens(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("deleting credentials from redis: %w", err)
	}
	return nil
}
