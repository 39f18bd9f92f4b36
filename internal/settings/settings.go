// Package settings is a small namespaced key-value store for runtime
// configuration that administrators can change without a redeploy.
package settings

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store reads and writes namespaced string settings. Get returns ok=false
// when the key has never been saved.
type Store interface {
	Get(ctx context.Context, key, namespace string) (value string, ok bool, err error)
	Save(ctx context.Context, key, value, namespace string) error
}

// RedisStore keeps settings in Redis under "settings:<namespace>:<key>".
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed settings store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(key, namespace string) string {
	return fmt.Sprintf("settings:%s:%s", namespace, key)
}

// Get fetches a setting.
func (s *RedisStore) Get(ctx context.Context, key, namespace string) (string, bool, error) {
	value, err := s.client.Get(ctx, redisKey(key, namespace)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Save writes a setting. Settings never expire.
func (s *RedisStore) Save(ctx context.Context, key, value, namespace string) error {
	return s.client.Set(ctx, redisKey(key, namespace), value, 0).Err()
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory settings store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get fetches a setting.
func (s *MemoryStore) Get(ctx context.Context, key, namespace string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[redisKey(key, namespace)]
	return value, ok, nil
}

// Save writes a setting.
func (s *MemoryStore) Save(ctx context.Context, key, value, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[redisKey(key, namespace)] = value
	return nil
}
