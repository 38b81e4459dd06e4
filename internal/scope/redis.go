package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisScope implements Scope backed by Redis, for deployments where the
// durable scope should be shared across devices or survive the local disk.
type RedisScope struct {
	client *redis.Client
	prefix string
}

// NewRedisScope creates a Redis-backed scope. Keys are namespaced with
// prefix to keep multiple installations apart.
func NewRedisScope(client *redis.Client, prefix string) *RedisScope {
	return &RedisScope{
		client: client,
		prefix: prefix,
	}
}

// key namespaces a scope key.
func (r *RedisScope) key(key string) string {
	return fmt.Sprintf("%s:scope:%s", r.prefix, key)
}

// Get retrieves the value for key.
func (r *RedisScope) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Set stores the value for key. Values do not expire; lifetime is managed
// by explicit Delete (sign-out).
func (r *RedisScope) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the key.
func (r *RedisScope) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ensure RedisScope implements Scope.
var _ Scope = (*RedisScope)(nil)
