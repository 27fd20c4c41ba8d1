package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a process-local fixed-window limiter used when no Redis
// instance is configured and in tests. It carries the same semantics as the
// Redis limiter but offers no cross-process coordination.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]window), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, windowSize time.Duration) (bool, time.Duration, error) {
	if limit <= 0 || windowSize <= 0 || key == "" {
		return true, 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		w = window{count: 0, resetAt: now.Add(windowSize)}
	}
	w.count++
	l.windows[key] = w
	if w.count > limit {
		return false, w.resetAt.Sub(now), nil
	}
	return true, 0, nil
}
