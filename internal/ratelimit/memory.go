package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count     int64
	expiresAt time.Time
}

// MemoryLimiter is a process-local Limiter for tests and Redis-less
// deployments. The mutex makes increment-and-start-window one logical step
// per device, matching the guarantee the Redis script provides.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int64
	window  time.Duration
	now     func() time.Time
}

func NewMemoryLimiter(limit int64, windowLength time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		window:  windowLength,
		now:     time.Now,
	}
}

// SetNow overrides the clock. Test hook.
func (l *MemoryLimiter) SetNow(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *MemoryLimiter) Allow(_ context.Context, deviceID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[deviceID]
	if ok && !now.Before(w.expiresAt) {
		// Expired windows are removed entirely; the next request starts
		// a fresh window rather than inheriting the old expiry.
		delete(l.windows, deviceID)
		ok = false
	}
	if !ok {
		w = &window{expiresAt: now.Add(l.window)}
		l.windows[deviceID] = w
	}
	w.count++
	return w.count <= l.limit, nil
}
