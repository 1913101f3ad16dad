package handlers

import (
	"strings"
	"sync"
	"time"
)

// rateLimiter throttles repeated calls keyed by caller identity. Device
// registration uses it keyed by remote address.
type rateLimiter interface {
	Allow(key string) bool
}

// simpleRateLimiter counts hits per key inside a fixed window. Entries are
// pruned opportunistically whenever a new window opens, so the map stays
// bounded by the number of distinct callers within one window.
type simpleRateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	hits   map[string]windowCount
}

type windowCount struct {
	count   int
	resetAt time.Time
}

func newSimpleRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &simpleRateLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		hits:   make(map[string]windowCount),
	}
}

func (l *simpleRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.hits[key]
	if !ok || now.After(entry.resetAt) {
		l.hits[key] = windowCount{count: 1, resetAt: now.Add(l.window)}
		l.pruneLocked(now)
		return true
	}

	if entry.count >= l.limit {
		return false
	}
	entry.count++
	l.hits[key] = entry
	return true
}

func (l *simpleRateLimiter) pruneLocked(now time.Time) {
	for key, entry := range l.hits {
		if now.After(entry.resetAt) {
			delete(l.hits, key)
		}
	}
}
