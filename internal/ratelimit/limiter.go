// Package ratelimit provides the two throttles the reconciliation engine
// needs: a per-key cooldown (reset-usage abuse guard) and a pacer that slows
// long remote batches down.
package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter enforces a cooldown per key: the first Allow within the window
// succeeds, the rest are rejected until the window expires.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type redisLimiter struct {
	client *redis.Client
	prefix string
	window time.Duration
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+":"+key, "1", l.window).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

type memoryLimiter struct {
	mu     sync.Mutex
	taken  map[string]time.Time
	window time.Duration
	nextGC time.Time
}

func newMemoryLimiter(window time.Duration) *memoryLimiter {
	now := time.Now()
	return &memoryLimiter{
		taken:  make(map[string]time.Time),
		window: window,
		nextGC: now.Add(window),
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if exp, ok := l.taken[key]; ok && exp.After(now) {
		return false, nil
	}

	l.taken[key] = now.Add(l.window)
	if now.After(l.nextGC) {
		for k, exp := range l.taken {
			if exp.Before(now) {
				delete(l.taken, k)
			}
		}
		l.nextGC = now.Add(l.window)
	}

	return true, nil
}

// NewLimiter builds a Redis-backed limiter and falls back to in-memory when
// Redis is unconfigured or unreachable. The error reports the failed Redis
// connection; the returned limiter works either way.
func NewLimiter(addr, pass string, db int, prefix string, window time.Duration) (Limiter, error) {
	if window <= 0 {
		window = time.Minute
	}
	if addr == "" {
		return newMemoryLimiter(window), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryLimiter(window), err
	}

	return &redisLimiter{client: client, prefix: prefix, window: window}, nil
}

// ConfigKey builds the limiter key for a per-config cooldown.
func ConfigKey(configID uint) string {
	return strconv.FormatUint(uint64(configID), 10)
}
