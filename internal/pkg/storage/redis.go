package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis instance. Keys are namespaced so
// several gateways (or a storefront and an admin build) can share one server.
type Redis struct {
	client *redis.Client
	scope  string
}

// NewRedis connects lazily to addr; scope namespaces every key.
func NewRedis(addr, scope string) *Redis {
	return NewRedisFromClient(redis.NewClient(&redis.Options{Addr: addr}), scope)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, scope string) *Redis {
	return &Redis{client: client, scope: scope}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.GenerateKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("storage: redis set %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.GenerateKey(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("storage: redis get %q: %w", key, err)
	}
	return value, nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.GenerateKey(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("storage: redis delete: %w", err)
	}
	return nil
}

// GenerateKey namespaces key as campify:{scope}:{key}.
func (r *Redis) GenerateKey(key string) string {
	return fmt.Sprintf("campify:%s:%s", r.scope, key)
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
