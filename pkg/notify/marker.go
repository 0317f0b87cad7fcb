package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"taxidocs/pkg/errs"
)

// Marker records which reminders were already admitted. Acquire is atomic:
// of two concurrent callers with the same key exactly one gets true.
type Marker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisMarker struct {
	client *redis.Client
	prefix string
}

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %v: %w", err, errs.ErrStorageUnavailable)
	}
	return client, nil
}

func NewRedisMarker(client *redis.Client, prefix string) *RedisMarker {
	return &RedisMarker{client: client, prefix: prefix}
}

func (m *RedisMarker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := m.client.SetNX(ctx, m.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %v: %w", key, err, errs.ErrStorageUnavailable)
	}
	return ok, nil
}

func (m *RedisMarker) Release(ctx context.Context, key string) error {
	if err := m.client.Del(ctx, m.prefix+key).Err(); err != nil {
		return fmt.Errorf("release %s: %v: %w", key, err, errs.ErrStorageUnavailable)
	}
	return nil
}

// MemoryMarker keeps markers in process. Used when REDIS_URL is empty and in tests.
type MemoryMarker struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{entries: map[string]time.Time{}, now: time.Now}
}

func (m *MemoryMarker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if exp, ok := m.entries[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.entries[key] = now.Add(ttl)
	return true, nil
}

func (m *MemoryMarker) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Held reports whether key is currently marked.
func (m *MemoryMarker) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[key]
	return ok && m.now().Before(exp)
}
