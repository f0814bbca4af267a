// Package ratelimit implements fixed-window request counters shared by the
// API-wide throttle and the login throttle.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
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

// Limiter counts hits per key inside a window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// fixedWindowScript increments the counter and arms the expiry on the first
// hit of a window. It returns {count, pttl}.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local window_ms = tonumber(ARGV[1])

	local count = redis.call('INCR', key)
	if count == 1 then
		redis.call('PEXPIRE', key, window_ms)
	end
	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		redis.call('PEXPIRE', key, window_ms)
		ttl = window_ms
	end
	return { count, ttl }
`)

// RedisFixedWindow keeps counters in Redis so that every API instance sees
// the same budget.
type RedisFixedWindow struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

// NewRedisFixedWindow builds a limiter allowing limit hits per window.
func NewRedisFixedWindow(rdb redis.Scripter, prefix string, limit int, window time.Duration) *RedisFixedWindow {
	if limit < 1 {
		limit = 1
	}
	return &RedisFixedWindow{rdb: rdb, limit: limit, window: window, prefix: prefix}
}

func (l *RedisFixedWindow) Allow(ctx context.Context, key string) (Decision, error) {
	full := key
	if l.prefix != "" {
		full = l.prefix + ":" + key
	}
	vals, err := fixedWindowScript.Run(ctx, l.rdb, []string{full}, l.window.Milliseconds()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit script: %w", err)
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script result %#v", vals)
	}
	count := asInt64(arr[0])
	ttl := time.Duration(asInt64(arr[1])) * time.Millisecond
	return decide(l.limit, count, ttl), nil
}

func decide(limit int, count int64, ttl time.Duration) Decision {
	d := Decision{Limit: limit, Allowed: count <= int64(limit)}
	if rem := int64(limit) - count; rem > 0 {
		d.Remaining = int(rem)
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// MemoryFixedWindow is a single-process limiter used when Redis is not
// configured.
type MemoryFixedWindow struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*window
}

type window struct {
	start time.Time
	count int64
}

func NewMemoryFixedWindow(limit int, win time.Duration) *MemoryFixedWindow {
	if limit < 1 {
		limit = 1
	}
	return &MemoryFixedWindow{limit: limit, window: win, now: time.Now, windows: map[string]*window{}}
}

// WithClock replaces the time source. Tests only.
func (l *MemoryFixedWindow) WithClock(now func() time.Time) *MemoryFixedWindow {
	l.now = now
	return l
}

func (l *MemoryFixedWindow) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		w = &window{start: now}
		l.windows[key] = w
		l.sweep(now)
	}
	w.count++
	return decide(l.limit, w.count, w.start.Add(l.window).Sub(now)), nil
}

// sweep drops expired windows so idle keys do not accumulate.
func (l *MemoryFixedWindow) sweep(now time.Time) {
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, k)
		}
	}
}
