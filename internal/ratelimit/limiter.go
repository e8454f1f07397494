// Package ratelimit counts requests per identifier inside a fixed window that
// starts at the identifier's first request and resets once it elapses.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds (min 1 when limited).
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	s := int((d.RetryAfter + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

type Limiter interface {
	Allow(ctx context.Context, identifier string) (Decision, error)
}

type record struct {
	windowStart time.Time
	count       int
}

// Memory is a process-local limiter.
type Memory struct {
	mu      sync.Mutex
	records map[string]*record
	limit   int
	window  time.Duration
	now     func() time.Time
	calls   int
}

func NewMemory(limit int, window time.Duration) *Memory {
	if window <= 0 {
		window = time.Minute
	}
	return &Memory{records: make(map[string]*record), limit: limit, window: window, now: time.Now}
}

func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Allow(_ context.Context, id string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.limit <= 0 {
		return Decision{Allowed: true}, nil
	}

	now := m.now()
	m.calls++
	if m.calls%256 == 0 {
		m.sweep(now)
	}

	r, ok := m.records[id]
	if !ok || now.Sub(r.windowStart) >= m.window {
		r = &record{windowStart: now}
		m.records[id] = r
	}
	r.count++

	d := Decision{Limit: m.limit, Remaining: m.limit - r.count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if r.count > m.limit {
		d.RetryAfter = r.windowStart.Add(m.window).Sub(now)
		return d, nil
	}
	d.Allowed = true
	return d, nil
}

func (m *Memory) sweep(now time.Time) {
	for id, r := range m.records {
		if now.Sub(r.windowStart) >= m.window {
			delete(m.records, id)
		}
	}
}

// Redis shares counters across instances: INCR on rl:<name>:<id>, PEXPIRE on the
// first hit of a window.
type Redis struct {
	rdb    redis.Cmdable
	prefix string
	limit  int
	window time.Duration
}

func NewRedis(rdb redis.Cmdable, name string, limit int, window time.Duration) *Redis {
	if window <= 0 {
		window = time.Minute
	}
	return &Redis{rdb: rdb, prefix: "rl:" + name + ":", limit: limit, window: window}
}

func (l *Redis) Allow(ctx context.Context, id string) (Decision, error) {
	if l.limit <= 0 {
		return Decision{Allowed: true}, nil
	}

	key := l.prefix + id
	pipe := l.rdb.TxPipeline()
	cnt := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true}, err
	}

	remaining := ttl.Val()
	if cnt.Val() == 1 || remaining < 0 {
		if err := l.rdb.PExpire(ctx, key, l.window).Err(); err != nil {
			return Decision{Allowed: true}, err
		}
		remaining = l.window
	}

	d := Decision{Limit: l.limit, Remaining: l.limit - int(cnt.Val())}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if cnt.Val() > int64(l.limit) {
		d.RetryAfter = remaining
		return d, nil
	}
	d.Allowed = true
	return d, nil
}
