package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// #region redis-adapter

// RedisAdapter stores profile documents as plain string values under a
// namespaced key. Suited to multi-instance deployments where each session's
// engine may land on a different host.
type RedisAdapter struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig configures the Redis adapter.
type RedisConfig struct {
	Addr   string
	Prefix string        // key prefix, default "progression"
	TTL    time.Duration // 0 = no expiry
}

// NewRedisAdapter connects to Redis and verifies the connection.
func NewRedisAdapter(cfg RedisConfig) (*RedisAdapter, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "progression"
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &RedisAdapter{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}, nil
}

// NewRedisAdapterWithClient wraps an existing client. Used by tests with
// miniredis.
func NewRedisAdapterWithClient(client *redis.Client, prefix string) *RedisAdapter {
	if prefix == "" {
		prefix = "progression"
	}
	return &RedisAdapter{client: client, prefix: prefix}
}

func (r *RedisAdapter) docKey(key string) string {
	return fmt.Sprintf("%s:profile:%s", r.prefix, key)
}

// Load returns the stored document, or (nil, nil) if the key is absent.
func (r *RedisAdapter) Load(key string) ([]byte, error) {
	val, err := r.client.Get(context.Background(), r.docKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Op: "load", Key: key, Err: err}
	}
	return val, nil
}

// Save writes the document, applying the configured TTL if any.
func (r *RedisAdapter) Save(key string, data []byte) error {
	err := r.client.Set(context.Background(), r.docKey(key), data, r.ttl).Err()
	if err != nil {
		return &Error{Op: "save", Key: key, Err: err}
	}
	return nil
}

// Close shuts down the client connection pool.
func (r *RedisAdapter) Close() error {
	return r.client.Close()
}

// #endregion redis-adapter
