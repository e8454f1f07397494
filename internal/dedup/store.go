package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the small TTL key-value surface the deduplicator needs. Memory keeps it
// process-local; Redis shares it across instances.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

type memEntry struct {
	value     string
	markedAt  time.Time
	expiresAt time.Time
}

// MemoryStore keeps entries until they are swept. A sweep runs on every SetTTL and
// drops entries marked more than Retention ago.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]memEntry
	Retention time.Duration
	Now       func() time.Time
}

func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = time.Hour
	}
	return &MemoryStore{
		entries:   make(map[string]memEntry),
		Retention: retention,
		Now:       time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !s.Now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) SetTTL(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	s.entries[key] = memEntry{value: value, markedAt: now, expiresAt: now.Add(ttl)}

	for k, e := range s.entries {
		if now.Sub(e.markedAt) > s.Retention {
			delete(s.entries, k)
		}
	}
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Len is the number of entries currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RedisStore keeps keys in redis with native expiry.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisStore(rdb redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "dedup:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.prefix+key, value, ttl).Err()
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
