package ratelimit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Limiter decides whether another attempt under key is allowed right now.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// Memory is a sliding-window limiter kept in process memory.
type Memory struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
	now     func() time.Time
}

func NewMemory(max int, window time.Duration) *Memory {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Memory{max: max, window: window, entries: make(map[string][]time.Time), now: time.Now}
}

func (l *Memory) Allow(_ context.Context, key string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

// Redis is a fixed-window limiter shared by every server instance. When Redis
// is unreachable it degrades to the in-process fallback.
type Redis struct {
	client   redis.UniversalClient
	prefix   string
	max      int
	window   time.Duration
	fallback *Memory
}

func NewRedis(client redis.UniversalClient, prefix string, max int, window time.Duration) *Redis {
	fallback := NewMemory(max, window)
	return &Redis{
		client:   client,
		prefix:   prefix,
		max:      fallback.max,
		window:   fallback.window,
		fallback: fallback,
	}
}

func (l *Redis) Allow(ctx context.Context, key string) bool {
	bucket := time.Now().UnixNano() / int64(l.window)
	redisKey := fmt.Sprintf("ratelimit:%s:%s:%d", l.prefix, key, bucket)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[ratelimit] WARN: redis unavailable for %s, using in-memory window: %v", l.prefix, err)
		return l.fallback.Allow(ctx, key)
	}
	return incr.Val() <= int64(l.max)
}
