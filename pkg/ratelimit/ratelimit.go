// Package ratelimit 提供按 key 的令牌桶限流
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	// Allow checks if the request is allowed for the given key and limit
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit defines the rate limit rule
type Limit struct {
	Rate   float64
	Period time.Duration
	Burst  int
}

func (l Limit) every() rate.Limit {
	if l.Period <= 0 {
		return rate.Limit(l.Rate)
	}
	return rate.Limit(l.Rate / l.Period.Seconds())
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// 本地限流器的清理节奏
const (
	sweepInterval = time.Minute
	idleTTL       = 10 * time.Minute
)

type localEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// LocalRateLimiter 进程内限流器，每个 key 一个令牌桶。
// 令牌已补满或长时间未访问的桶会被定期清理，清理满桶不改变限流结果。
type LocalRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*localEntry
	lastSweep time.Time
	now       func() time.Time
}

// NewLocalRateLimiter creates a new LocalRateLimiter
func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{
		limiters: make(map[string]*localEntry),
		now:      time.Now,
	}
}

// sweep 删除可丢弃的桶，调用方持有锁
func (l *LocalRateLimiter) sweep(now time.Time) {
	for key, e := range l.limiters {
		if now.Sub(e.seen) > idleTTL || e.lim.TokensAt(now) >= float64(e.lim.Burst()) {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

// size 当前持有的桶数量
func (l *LocalRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *LocalRateLimiter) limiter(key string, limit Limit, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweep(now)
	}
	e, ok := l.limiters[key]
	if !ok {
		e = &localEntry{lim: rate.NewLimiter(limit.every(), limit.Burst)}
		l.limiters[key] = e
	}
	e.seen = now
	lim := e.lim
	if lim.Limit() != limit.every() {
		lim.SetLimitAt(now, limit.every())
	}
	if lim.Burst() != limit.Burst {
		lim.SetBurstAt(now, limit.Burst)
	}
	return lim
}

// Allow implements RateLimiter
func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	now := l.now()
	lim := l.limiter(key, limit, now)
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return &Result{Allowed: false}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &Result{Allowed: false, RetryAfter: delay}, nil
	}
	remaining := int(math.Floor(lim.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}
	return &Result{Allowed: true, Remaining: remaining}, nil
}
